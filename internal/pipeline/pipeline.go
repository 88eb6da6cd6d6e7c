// Package pipeline wires a payload source, a chain of stages and a sink
// together and runs them behind a synchronous Execute call.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Static and compile-time check to ensure stageParams implements StageParams.
var _ StageParams = (*stageParams)(nil)

type stageParams struct {
	stage   int
	inChan  <-chan Payload
	outChan chan<- Payload
	errChan chan<- error
}

func (p *stageParams) StageIndex() int { return p.stage }
func (p *stageParams) Input() <-chan Payload { return p.inChan }
func (p *stageParams) Output() chan<- Payload { return p.outChan }
func (p *stageParams) Error() chan<- error { return p.errChan }

// Pipeline is a source, zero or more stages and a sink connected through
// unbuffered channels.
type Pipeline struct {
	stages []StageRunner
}

// New returns a Pipeline that runs the given stages in order.
func New(stages ...StageRunner) *Pipeline {
	return &Pipeline{stages: stages}
}

// Execute reads every payload from src, sends it through the stages and
// hands the results to sink.
//
// Calls to Execute block until the source is exhausted and every payload has
// reached the sink or been dropped, a component reports an error, or ctx is
// cancelled. Errors from all components are aggregated.
func (p *Pipeline) Execute(ctx context.Context, src Source, sink Sink) error {
	var wg sync.WaitGroup
	execCtx, cancel := context.WithCancel(ctx)

	// The i_th channel feeds stage i; the last one feeds the sink.
	stageChans := make([]chan Payload, len(p.stages)+1)
	for i := range stageChans {
		stageChans[i] = make(chan Payload)
	}

	errChan := make(chan error, len(p.stages)+2)

	for i := range p.stages {
		wg.Add(1)

		go func(index int) {
			defer wg.Done()

			p.stages[index].Run(execCtx, &stageParams{
				stage:   index,
				inChan:  stageChans[index],
				outChan: stageChans[index+1],
				errChan: errChan,
			})

			// Signal the next stage that no more data is coming.
			close(stageChans[index+1])
		}(i)
	}

	wg.Add(2)

	go func() {
		sourceWorker(execCtx, src, stageChans[0], errChan)
		close(stageChans[0])
		wg.Done()
	}()

	go func() {
		sinkWorker(execCtx, sink, stageChans[len(stageChans)-1], errChan)
		wg.Done()
	}()

	go func() {
		wg.Wait()
		close(errChan)
		cancel()
	}()

	var err error
	for stageErr := range errChan {
		err = multierror.Append(err, stageErr)
		cancel()
	}

	return err
}

func sourceWorker(ctx context.Context, src Source, outChan chan<- Payload, errChan chan<- error) {
	for src.Next(ctx) {
		select {
		case <-ctx.Done():
			return
		case outChan <- src.Payload():
		}
	}

	if err := src.Error(); err != nil {
		mayEmitError(fmt.Errorf("pipeline source: %w", err), errChan)
	}
}

func sinkWorker(ctx context.Context, sink Sink, inChan <-chan Payload, errChan chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-inChan:
			if !ok {
				return
			}

			if err := sink.Consume(ctx, payload); err != nil {
				mayEmitError(fmt.Errorf("pipeline sink: %w", err), errChan)

				return
			}

			payload.MarkAsProcessed()
		}
	}
}

func mayEmitError(err error, errChan chan<- error) {
	select {
	case errChan <- err:
	default: // errChan is full; drop the error.
	}
}
