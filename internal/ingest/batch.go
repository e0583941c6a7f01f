package ingest

import (
	"context"
	"fmt"

	"leakctl/internal/search"
)

// Submitter writes one batch of documents as a single bulk operation. The
// batch is all-or-nothing from the caller's point of view: any error means
// the run stops. Implementations must not retain docs after returning.
type Submitter interface {
	Submit(ctx context.Context, docs []Document) error
}

// AliasSubmitter sends batches to a rollover alias through the search
// client, letting Elasticsearch route writes to the current write index.
type AliasSubmitter struct {
	Client *search.Client
	Alias  string
}

// Submit encodes docs as one _bulk payload and sends it.
func (s AliasSubmitter) Submit(ctx context.Context, docs []Document) error {
	body := search.NewBulkBody(s.Alias)
	for i := range docs {
		if err := body.Add(&docs[i]); err != nil {
			return err
		}
	}
	if _, err := s.Client.Bulk(ctx, body); err != nil {
		return err
	}
	return nil
}

// maxPrealloc caps the initial batch capacity; larger batches grow on append.
const maxPrealloc = 4096

// batch is the accumulator between the transformer and the submitter.
type batch struct {
	docs  []Document
	limit int
}

func newBatch(limit int) *batch {
	return &batch{docs: make([]Document, 0, min(limit, maxPrealloc)), limit: limit}
}

// add appends doc and reports whether the batch reached its limit.
func (b *batch) add(doc Document) bool {
	b.docs = append(b.docs, doc)
	return len(b.docs) >= b.limit
}

// flush submits every pending document and then clears the batch. On
// error the batch is left as is; the caller aborts the run.
func (b *batch) flush(ctx context.Context, sub Submitter) (int, error) {
	n := len(b.docs)
	if n == 0 {
		return 0, nil
	}
	if err := sub.Submit(ctx, b.docs); err != nil {
		return 0, fmt.Errorf("submit batch of %d: %w", n, err)
	}
	clear(b.docs)
	b.docs = b.docs[:0]
	return n, nil
}
