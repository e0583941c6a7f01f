package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// BulkBody accumulates an NDJSON _bulk payload of index actions against a
// single target (usually the rollover alias).
type BulkBody struct {
	index string
	buf   bytes.Buffer
	enc   *json.Encoder
	meta  []byte
	n     int
}

// NewBulkBody starts an empty payload whose actions all target index.
func NewBulkBody(index string) *BulkBody {
	b := &BulkBody{index: index}
	b.enc = json.NewEncoder(&b.buf)
	b.enc.SetEscapeHTML(false)
	b.meta, _ = json.Marshal(map[string]map[string]string{"index": {"_index": index}})
	return b
}

// Add appends one document as an index action.
func (b *BulkBody) Add(doc any) error {
	b.buf.Write(b.meta)
	b.buf.WriteByte('\n')
	// Encode terminates the document with the newline _bulk requires.
	if err := b.enc.Encode(doc); err != nil {
		return fmt.Errorf("encode bulk document %d: %w", b.n, err)
	}
	b.n++
	return nil
}

// Len is the number of documents added.
func (b *BulkBody) Len() int { return b.n }

// Index is the target of every action in the payload.
func (b *BulkBody) Index() string { return b.index }

// Bytes returns the encoded payload.
func (b *BulkBody) Bytes() []byte { return b.buf.Bytes() }

// BulkResult summarizes a fully successful _bulk request.
type BulkResult struct {
	Items int
	Took  int
}

// BulkError reports a _bulk request in which at least one item failed.
// Earlier items in the same request may have been indexed.
type BulkError struct {
	Index       string
	Total       int
	Failed      int
	FirstStatus int
	FirstType   string
	FirstReason string
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("bulk into %s: %d of %d documents rejected (first: %d %s: %s)",
		e.Index, e.Failed, e.Total, e.FirstStatus, e.FirstType, e.FirstReason)
}

type bulkResponse struct {
	Took   int  `json:"took"`
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Bulk submits the payload as one _bulk request. A transport failure, a
// non-2xx reply, or any rejected item is returned as an error; nothing is
// retried.
func (c *Client) Bulk(ctx context.Context, body *BulkBody) (*BulkResult, error) {
	if body.Len() == 0 {
		return &BulkResult{}, nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Bulk(
		bytes.NewReader(body.Bytes()),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithFilterPath("took", "errors", "items.*.status", "items.*.error"),
	)
	if err != nil {
		return nil, fmt.Errorf("bulk into %s: %w", body.Index(), err)
	}

	var br bulkResponse
	if err := decode(res, &br); err != nil {
		return nil, fmt.Errorf("bulk into %s: %w", body.Index(), err)
	}

	if br.Errors {
		be := &BulkError{Index: body.Index(), Total: body.Len()}
		for _, item := range br.Items {
			for _, r := range item {
				if r.Error == nil && r.Status < 300 {
					continue
				}
				if be.Failed == 0 {
					be.FirstStatus = r.Status
					if r.Error != nil {
						be.FirstType = r.Error.Type
						be.FirstReason = r.Error.Reason
					}
				}
				be.Failed++
			}
		}
		return nil, be
	}

	return &BulkResult{Items: len(br.Items), Took: br.Took}, nil
}
