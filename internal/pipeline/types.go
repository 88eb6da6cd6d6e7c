package pipeline

import "context"

// Source is implemented by types that generate the Payload instances fed
// into a Pipeline.
type Source interface {
	// Next advances to the next payload and reports whether one is available.
	// Once Next returns false the source is exhausted or has failed.
	Next(context.Context) bool

	// Payload returns the current payload.
	Payload() Payload

	// Error returns the last error observed by the source.
	Error() error
}

// Sink is implemented by types that receive the payloads emitted by the last
// stage of a Pipeline.
type Sink interface {
	// Consume processes a payload that made it through every stage.
	Consume(context.Context, Payload) error
}

// Payload is implemented by values that travel through a Pipeline.
type Payload interface {
	// MarkAsProcessed is invoked by the pipeline once the payload either
	// reaches the sink or is dropped by a stage.
	MarkAsProcessed()
}

// StageParams carries the channels a stage reads from and writes to.
type StageParams interface {
	// StageIndex returns the position of the stage in the pipeline.
	StageIndex() int

	// Input returns the channel the stage reads payloads from.
	Input() <-chan Payload

	// Output returns the channel the stage writes processed payloads to.
	Output() chan<- Payload

	// Error returns the channel the stage reports fatal errors to.
	Error() chan<- error
}

// Processor is implemented by types that transform payloads inside a stage.
type Processor interface {
	// Process operates on the input payload and returns the payload to
	// forward to the next stage. Returning a nil payload drops it.
	Process(context.Context, Payload) (Payload, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(context.Context, Payload) (Payload, error)

// Process calls f(ctx, p).
func (f ProcessorFunc) Process(ctx context.Context, p Payload) (Payload, error) {
	return f(ctx, p)
}

// StageRunner is implemented by types that can be strung together to form a
// multi-stage pipeline.
type StageRunner interface {
	// Run reads payloads from the stage input, processes them and writes
	// the results to the stage output. Calls to Run block until the input
	// channel is closed, the context expires or a processing error occurs.
	Run(context.Context, StageParams)
}
