package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/mycok/sdnsync/internal/index"
)

// Static and compile-time checks to ensure ElasticsearchBackend implements
// the index interfaces.
var (
	_ index.Backend  = (*ElasticsearchBackend)(nil)
	_ index.Resolver = (*ElasticsearchBackend)(nil)
)

type esErrorRes struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

type esError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e esError) Error() string {
	if e.Type == "" {
		return e.Reason
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

// ElasticsearchBackend is an index.Backend that manages indices and aliases
// on an elasticsearch cluster.
type ElasticsearchBackend struct {
	client      *elasticsearch.Client
	refreshOpts func(*esapi.IndexRequest)
}

// NewElasticsearchBackend returns a backend that talks to the given
// elasticsearch nodes. When shouldSyncUpdates is true every indexed document
// is searchable as soon as IndexDocument returns.
func NewElasticsearchBackend(esNodes []string, shouldSyncUpdates bool) (*ElasticsearchBackend, error) {
	c, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: esNodes,
	})
	if err != nil {
		return nil, err
	}

	refreshOpts := c.Index.WithRefresh("false")
	if shouldSyncUpdates {
		refreshOpts = c.Index.WithRefresh("true")
	}

	return &ElasticsearchBackend{
		client:      c,
		refreshOpts: refreshOpts,
	}, nil
}

// DetachAlias implements index.Backend.
func (b *ElasticsearchBackend) DetachAlias(ctx context.Context, alias, name string) error {
	res, err := b.client.Indices.DeleteAlias(
		[]string{name}, []string{alias},
		b.client.Indices.DeleteAlias.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("detach alias: %w", err)
	}

	if err := unmarshalResponse(res, nil); err != nil {
		return fmt.Errorf("detach alias: %w", err)
	}

	return nil
}

// DeleteIndex implements index.Backend.
func (b *ElasticsearchBackend) DeleteIndex(ctx context.Context, name string) error {
	res, err := b.client.Indices.Delete(
		[]string{name},
		b.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete index: %w", err)
	}

	if err := unmarshalResponse(res, nil); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}

	return nil
}

// CreateIndex implements index.Backend. schema is sent verbatim as the
// request body.
func (b *ElasticsearchBackend) CreateIndex(ctx context.Context, name string, schema []byte) error {
	res, err := b.client.Indices.Create(
		name,
		b.client.Indices.Create.WithBody(bytes.NewReader(schema)),
		b.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	if err := unmarshalResponse(res, nil); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	return nil
}

// IndexDocument implements index.Backend.
func (b *ElasticsearchBackend) IndexDocument(
	ctx context.Context, name, id string, doc map[string]interface{},
) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("index document: %w", err)
	}

	res, err := b.client.Index(
		name, &buf,
		b.client.Index.WithDocumentID(id),
		b.client.Index.WithContext(ctx),
		b.refreshOpts,
	)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}

	if err := unmarshalResponse(res, nil); err != nil {
		return fmt.Errorf("index document: %w", err)
	}

	return nil
}

// AttachAlias implements index.Backend.
func (b *ElasticsearchBackend) AttachAlias(ctx context.Context, alias, name string) error {
	res, err := b.client.Indices.PutAlias(
		[]string{name}, alias,
		b.client.Indices.PutAlias.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("attach alias: %w", err)
	}

	if err := unmarshalResponse(res, nil); err != nil {
		return fmt.Errorf("attach alias: %w", err)
	}

	return nil
}

// Resolve returns the sorted names of the indices alias points at. An alias
// that does not exist resolves to an empty list.
func (b *ElasticsearchBackend) Resolve(ctx context.Context, alias string) ([]string, error) {
	res, err := b.client.Indices.GetAlias(
		b.client.Indices.GetAlias.WithName(alias),
		b.client.Indices.GetAlias.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("resolve alias: %w", err)
	}

	if res.StatusCode == http.StatusNotFound {
		_ = res.Body.Close()

		return []string{}, nil
	}

	var byIndex map[string]json.RawMessage
	if err := unmarshalResponse(res, &byIndex); err != nil {
		return nil, fmt.Errorf("resolve alias: %w", err)
	}

	names := make([]string, 0, len(byIndex))
	for name := range byIndex {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// unmarshalResponse closes the response body after decoding it into to (if
// non-nil) or into an error for non-2xx responses. 404 responses map to
// index.ErrNotFound and resource_already_exists_exception to
// index.ErrAlreadyExists.
func unmarshalResponse(res *esapi.Response, to interface{}) error {
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.IsError() {
		esErr := decodeError(res)

		switch {
		case res.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w", index.ErrNotFound, esErr)
		case esErr.Type == "resource_already_exists_exception":
			return fmt.Errorf("%w: %w", index.ErrAlreadyExists, esErr)
		default:
			return esErr
		}
	}

	if to == nil {
		return nil
	}

	return json.NewDecoder(res.Body).Decode(to)
}

// decodeError extracts the error returned by elasticsearch. The error field
// is either an object or, for some alias APIs, a plain string.
func decodeError(res *esapi.Response) esError {
	fallback := esError{Reason: res.Status()}

	var errRes esErrorRes
	if err := json.NewDecoder(res.Body).Decode(&errRes); err != nil || len(errRes.Error) == 0 {
		return fallback
	}

	var esErr esError
	if err := json.Unmarshal(errRes.Error, &esErr); err == nil {
		return esErr
	}

	var reason string
	if err := json.Unmarshal(errRes.Error, &reason); err == nil {
		return esError{Reason: reason}
	}

	return fallback
}
