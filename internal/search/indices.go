package search

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
)

// CatIndex is one row of _cat/indices in JSON format. Numbers arrive as
// strings; sizes are in the unit requested by CatIndices.
type CatIndex struct {
	Index     string `json:"index"`
	Health    string `json:"health"`
	Status    string `json:"status"`
	DocsCount string `json:"docs.count"`
	StoreSize string `json:"store.size"`
}

// CatIndices lists indices matching pattern with store sizes in gigabytes.
func (c *Client) CatIndices(ctx context.Context, pattern string) ([]CatIndex, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Cat.Indices(
		c.es.Cat.Indices.WithContext(ctx),
		c.es.Cat.Indices.WithIndex(pattern),
		c.es.Cat.Indices.WithFormat("json"),
		c.es.Cat.Indices.WithBytes("gb"),
	)
	if err != nil {
		return nil, fmt.Errorf("cat indices %s: %w", pattern, err)
	}
	var rows []CatIndex
	if err := decode(res, &rows); err != nil {
		return nil, fmt.Errorf("cat indices %s: %w", pattern, err)
	}
	return rows, nil
}

// AliasInfo is the per-index alias metadata from GET _alias/<name>.
type AliasInfo struct {
	IsWriteIndex bool `json:"is_write_index"`
}

// AliasIndices returns the indices behind alias and their alias metadata.
// A missing alias yields an empty map.
func (c *Client) AliasIndices(ctx context.Context, alias string) (map[string]AliasInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Indices.GetAlias(
		c.es.Indices.GetAlias.WithContext(ctx),
		c.es.Indices.GetAlias.WithName(alias),
		c.es.Indices.GetAlias.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return nil, fmt.Errorf("get alias %s: %w", alias, err)
	}

	var body map[string]struct {
		Aliases map[string]AliasInfo `json:"aliases"`
	}
	if err := decode(res, &body); err != nil {
		if IsNotFound(err) {
			return map[string]AliasInfo{}, nil
		}
		return nil, fmt.Errorf("get alias %s: %w", alias, err)
	}

	out := make(map[string]AliasInfo)
	for index, meta := range body {
		if info, ok := meta.Aliases[alias]; ok {
			out[index] = info
		}
	}
	return out, nil
}

// ListIndices returns the sorted names of indices matching pattern.
func (c *Client) ListIndices(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Indices.Get([]string{pattern}, c.es.Indices.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get indices %s: %w", pattern, err)
	}
	var body map[string]any
	if err := decode(res, &body); err != nil {
		return nil, fmt.Errorf("get indices %s: %w", pattern, err)
	}
	names := make([]string, 0, len(body))
	for name := range body {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteIndex removes an index. With ignoreUnavailable set, a missing
// index is not an error.
func (c *Client) DeleteIndex(ctx context.Context, index string, ignoreUnavailable bool) (acknowledged bool, err error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	opts := []func(*esapi.IndicesDeleteRequest){c.es.Indices.Delete.WithContext(ctx)}
	if ignoreUnavailable {
		opts = append(opts, c.es.Indices.Delete.WithIgnoreUnavailable(true))
	}
	res, err := c.es.Indices.Delete([]string{index}, opts...)
	if err != nil {
		return false, fmt.Errorf("delete index %s: %w", index, err)
	}
	var body struct {
		Acknowledged bool `json:"acknowledged"`
	}
	if err := decode(res, &body); err != nil {
		return false, fmt.Errorf("delete index %s: %w", index, err)
	}
	return body.Acknowledged, nil
}

// CreateIndex creates index with an optional request body (settings,
// mappings, aliases).
func (c *Client) CreateIndex(ctx context.Context, index string, body any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	opts := []func(*esapi.IndicesCreateRequest){c.es.Indices.Create.WithContext(ctx)}
	if body != nil {
		opts = append(opts, c.es.Indices.Create.WithBody(esutil.NewJSONReader(body)))
	}
	res, err := c.es.Indices.Create(index, opts...)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	if err := decode(res, nil); err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	return nil
}

// PutIndexTemplate creates or replaces a composable index template.
func (c *Client) PutIndexTemplate(ctx context.Context, name string, body any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Indices.PutIndexTemplate(name, esutil.NewJSONReader(body),
		c.es.Indices.PutIndexTemplate.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("put index template %s: %w", name, err)
	}
	if err := decode(res, nil); err != nil {
		return fmt.Errorf("put index template %s: %w", name, err)
	}
	return nil
}

// DeleteIndexTemplate removes a composable index template.
func (c *Client) DeleteIndexTemplate(ctx context.Context, name string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Indices.DeleteIndexTemplate(name, c.es.Indices.DeleteIndexTemplate.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete index template %s: %w", name, err)
	}
	if err := decode(res, nil); err != nil {
		return fmt.Errorf("delete index template %s: %w", name, err)
	}
	return nil
}

// AliasExists reports whether alias points at any index.
func (c *Client) AliasExists(ctx context.Context, alias string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Indices.ExistsAlias([]string{alias}, c.es.Indices.ExistsAlias.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("check alias %s: %w", alias, err)
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("check alias %s: %w", alias, &ResponseError{StatusCode: res.StatusCode})
	}
}

// FileCount is a document count for one source file name.
type FileCount struct {
	FileName string `json:"key"`
	Docs     int64  `json:"doc_count"`
}

// FileCounts runs a terms aggregation on file_name over index, returning at
// most size buckets ordered by document count.
func (c *Client) FileCounts(ctx context.Context, index string, size int) ([]FileCount, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"files": map[string]any{
				"terms": map[string]any{"field": "file_name", "size": size},
			},
		},
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(esutil.NewJSONReader(query)),
	)
	if err != nil {
		return nil, fmt.Errorf("file counts %s: %w", index, err)
	}
	var body struct {
		Aggregations struct {
			Files struct {
				Buckets []FileCount `json:"buckets"`
			} `json:"files"`
		} `json:"aggregations"`
	}
	if err := decode(res, &body); err != nil {
		return nil, fmt.Errorf("file counts %s: %w", index, err)
	}
	return body.Aggregations.Files.Buckets, nil
}
