package search

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leakctl/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// fakeES serves canned replies keyed by "METHOD /path" and records every
// request it sees.
type fakeES struct {
	t        *testing.T
	replies  map[string]fakeReply
	requests []recordedRequest
}

type fakeReply struct {
	status int
	body   string
}

func newFakeES(t *testing.T) (*fakeES, *Client) {
	t.Helper()
	f := &fakeES{t: t, replies: make(map[string]fakeReply)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := New(config.Elasticsearch{
		URL:      srv.URL,
		Username: "elasticuser",
		Password: "pw",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	return f, c
}

func (f *fakeES) on(method, path string, status int, body string) {
	f.replies[method+" "+path] = fakeReply{status: status, body: body}
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	reply, ok := f.replies[r.Method+" "+r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"not_found","reason":"no fake reply"},"status":404}`))
		return
	}
	w.WriteHeader(reply.status)
	_, _ = w.Write([]byte(reply.body))
}

func (f *fakeES) last() recordedRequest {
	f.t.Helper()
	require.NotEmpty(f.t, f.requests)
	return f.requests[len(f.requests)-1]
}

func TestInfo(t *testing.T) {
	f, c := newFakeES(t)
	f.on("GET", "/", 200, `{"name":"node-1","cluster_name":"leaks","version":{"number":"8.17.0"}}`)

	info, err := c.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "leaks", info.ClusterName)
	assert.Equal(t, "8.17.0", info.Version.Number)
}

func TestBulkBodyFormat(t *testing.T) {
	b := NewBulkBody("leaks")
	require.NoError(t, b.Add(map[string]any{"content": "a<b>", "line_number": 1}))
	require.NoError(t, b.Add(map[string]any{"content": "c", "line_number": 3}))
	assert.Equal(t, 2, b.Len())

	sc := bufio.NewScanner(bytes.NewReader(b.Bytes()))
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_index":"leaks"}}`, lines[0])
	assert.JSONEq(t, `{"content":"a<b>","line_number":1}`, lines[1])
	assert.Contains(t, lines[1], "a<b>", "HTML characters are not escaped")
	assert.JSONEq(t, `{"index":{"_index":"leaks"}}`, lines[2])
	assert.JSONEq(t, `{"content":"c","line_number":3}`, lines[3])
	assert.True(t, bytes.HasSuffix(b.Bytes(), []byte("\n")))
}

func TestBulkSuccess(t *testing.T) {
	f, c := newFakeES(t)
	f.on("POST", "/_bulk", 200, `{"took":7,"errors":false,"items":[{"index":{"status":201}},{"index":{"status":201}}]}`)

	b := NewBulkBody("leaks")
	require.NoError(t, b.Add(map[string]string{"content": "a"}))
	require.NoError(t, b.Add(map[string]string{"content": "b"}))

	res, err := c.Bulk(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Items)
	assert.Equal(t, 7, res.Took)

	req := f.last()
	assert.Equal(t, b.Bytes(), req.Body)
	assert.Contains(t, req.Query, "filter_path")
}

func TestBulkEmptyBodySkipsRequest(t *testing.T) {
	f, c := newFakeES(t)

	res, err := c.Bulk(context.Background(), NewBulkBody("leaks"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Items)
	assert.Empty(t, f.requests)
}

func TestBulkItemErrors(t *testing.T) {
	f, c := newFakeES(t)
	f.on("POST", "/_bulk", 200, `{"took":3,"errors":true,"items":[
		{"index":{"status":201}},
		{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse field [line_number]"}}},
		{"index":{"status":429,"error":{"type":"es_rejected_execution_exception","reason":"queue full"}}}
	]}`)

	b := NewBulkBody("leaks")
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Add(map[string]int{"line_number": i}))
	}

	_, err := c.Bulk(context.Background(), b)
	require.Error(t, err)

	var be *BulkError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 3, be.Total)
	assert.Equal(t, 2, be.Failed)
	assert.Equal(t, 400, be.FirstStatus)
	assert.Equal(t, "mapper_parsing_exception", be.FirstType)
	assert.Contains(t, err.Error(), "2 of 3 documents rejected")
}

func TestBulkHTTPError(t *testing.T) {
	f, c := newFakeES(t)
	f.on("POST", "/_bulk", 401, `{"error":{"type":"security_exception","reason":"unable to authenticate user [elasticuser]"},"status":401}`)

	b := NewBulkBody("leaks")
	require.NoError(t, b.Add(map[string]string{"content": "a"}))

	_, err := c.Bulk(context.Background(), b)
	require.Error(t, err)

	var re *ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 401, re.StatusCode)
	assert.Equal(t, "security_exception", re.Type)
}

func TestExplainLifecycle(t *testing.T) {
	f, c := newFakeES(t)
	f.on("GET", "/leaks-*/_ilm/explain", 200, `{"indices":{
		"leaks-000001":{"index":"leaks-000001","managed":true,"policy":"leaks_policy","phase":"hot","lifecycle_date_millis":1700000000000},
		"leaks-000002":{"index":"leaks-000002","managed":false}
	}}`)

	got, err := c.ExplainLifecycle(context.Background(), "leaks-*")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hot", got["leaks-000001"].Phase)
	assert.Equal(t, int64(1700000000000), got["leaks-000001"].LifecycleDateMillis)
	assert.Zero(t, got["leaks-000002"].LifecycleDateMillis)
}

func TestGetPolicies(t *testing.T) {
	f, c := newFakeES(t)
	f.on("GET", "/_ilm/policy", 200, `{"leaks_policy":{"version":1,"policy":{"phases":{
		"hot":{"min_age":"0ms","actions":{"rollover":{"max_age":"30d"}}},
		"delete":{"min_age":"90d","actions":{"delete":{}}}
	}}}}`)

	got, err := c.GetPolicies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "90d", got["leaks_policy"].Policy.Phases["delete"].MinAge)
}

func TestCatIndices(t *testing.T) {
	f, c := newFakeES(t)
	f.on("GET", "/_cat/indices/leaks-*", 200, `[{"index":"leaks-000001","docs.count":"42","store.size":"1.5"}]`)

	rows, err := c.CatIndices(context.Background(), "leaks-*")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "42", rows[0].DocsCount)
	assert.Equal(t, "1.5", rows[0].StoreSize)

	q := f.last().Query
	assert.Contains(t, q, "format=json")
	assert.Contains(t, q, "bytes=gb")
}

func TestAliasIndices(t *testing.T) {
	f, c := newFakeES(t)
	f.on("GET", "/_alias/leaks", 200, `{
		"leaks-000001":{"aliases":{"leaks":{"is_write_index":false}}},
		"leaks-000002":{"aliases":{"leaks":{"is_write_index":true}}}
	}`)

	got, err := c.AliasIndices(context.Background(), "leaks")
	require.NoError(t, err)
	assert.False(t, got["leaks-000001"].IsWriteIndex)
	assert.True(t, got["leaks-000002"].IsWriteIndex)
}

func TestAliasIndicesMissingAlias(t *testing.T) {
	f, c := newFakeES(t)
	f.on("GET", "/_alias/leaks", 404, `{"error":"alias [leaks] missing","status":404}`)

	got, err := c.AliasIndices(context.Background(), "leaks")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteIndex(t *testing.T) {
	f, c := newFakeES(t)
	f.on("DELETE", "/leaks-000001", 200, `{"acknowledged":true}`)

	ack, err := c.DeleteIndex(context.Background(), "leaks-000001", true)
	require.NoError(t, err)
	assert.True(t, ack)
	assert.Contains(t, f.last().Query, "ignore_unavailable=true")
}

func TestDeletePolicyNotFound(t *testing.T) {
	_, c := newFakeES(t)

	err := c.DeletePolicy(context.Background(), "leaks_policy")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFileCounts(t *testing.T) {
	f, c := newFakeES(t)
	f.on("POST", "/leaks-000001/_search", 200, `{"aggregations":{"files":{"buckets":[
		{"key":"combo.txt","doc_count":10},{"key":"dump.txt","doc_count":3}
	]}}}`)

	got, err := c.FileCounts(context.Background(), "leaks-000001", 100)
	require.NoError(t, err)
	assert.Equal(t, []FileCount{{FileName: "combo.txt", Docs: 10}, {FileName: "dump.txt", Docs: 3}}, got)

	var q map[string]any
	require.NoError(t, json.Unmarshal(f.last().Body, &q))
	assert.EqualValues(t, 0, q["size"])
	assert.True(t, strings.Contains(string(f.last().Body), `"field":"file_name"`))
}

func TestAliasExists(t *testing.T) {
	f, c := newFakeES(t)
	f.on("HEAD", "/_alias/leaks", 200, ``)

	ok, err := c.AliasExists(context.Background(), "leaks")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AliasExists(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListIndicesSorted(t *testing.T) {
	f, c := newFakeES(t)
	f.on("GET", "/leaks-*", 200, `{"leaks-000002":{},"leaks-000001":{},"leaks-000010":{}}`)

	got, err := c.ListIndices(context.Background(), "leaks-*")
	require.NoError(t, err)
	assert.Equal(t, []string{"leaks-000001", "leaks-000002", "leaks-000010"}, got)
}

func TestPutPolicy(t *testing.T) {
	f, c := newFakeES(t)
	f.on("PUT", "/_ilm/policy/leaks_policy", 200, `{"acknowledged":true}`)

	err := c.PutPolicy(context.Background(), "leaks_policy", map[string]Phase{
		"delete": {MinAge: "90d", Actions: map[string]any{"delete": map[string]any{}}},
	})
	require.NoError(t, err)

	var body struct {
		Policy struct {
			Phases map[string]Phase `json:"phases"`
		} `json:"policy"`
	}
	require.NoError(t, json.Unmarshal(f.last().Body, &body))
	assert.Equal(t, "90d", body.Policy.Phases["delete"].MinAge)
}

func TestCreateIndexAndTemplate(t *testing.T) {
	f, c := newFakeES(t)
	f.on("PUT", "/leaks-000001", 200, `{"acknowledged":true,"index":"leaks-000001"}`)
	f.on("PUT", "/_index_template/leaks_template", 200, `{"acknowledged":true}`)
	f.on("DELETE", "/_index_template/leaks_template", 200, `{"acknowledged":true}`)

	require.NoError(t, c.CreateIndex(context.Background(), "leaks-000001", nil))
	assert.Empty(t, f.last().Body, "nil body sends nothing")

	body := map[string]any{"aliases": map[string]any{"leaks": map[string]any{"is_write_index": true}}}
	require.NoError(t, c.CreateIndex(context.Background(), "leaks-000001", body))
	assert.Contains(t, string(f.last().Body), `"is_write_index":true`)

	require.NoError(t, c.PutIndexTemplate(context.Background(), "leaks_template", map[string]any{"index_patterns": []string{"leaks-*"}}))
	assert.Contains(t, string(f.last().Body), `"leaks-*"`)

	require.NoError(t, c.DeleteIndexTemplate(context.Background(), "leaks_template"))
}

func TestCreateIndexConflict(t *testing.T) {
	f, c := newFakeES(t)
	f.on("PUT", "/leaks-000001", 400, `{"error":{"type":"resource_already_exists_exception","reason":"index [leaks-000001] already exists"},"status":400}`)

	err := c.CreateIndex(context.Background(), "leaks-000001", nil)
	var re *ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "resource_already_exists_exception", re.Type)
	assert.False(t, IsNotFound(err))
}
