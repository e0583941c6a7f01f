// Package search is a thin handle over the Elasticsearch HTTP API: bulk
// writes to the rollover alias, the lifecycle and cat endpoints the status
// report reads, and the template/policy/index calls used by setup and
// teardown.
package search

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"leakctl/internal/config"
)

// Client wraps a go-elasticsearch client. It is created once per command
// and passed to whatever needs it.
type Client struct {
	es      *elasticsearch.Client
	timeout time.Duration
}

// New creates a client for the configured cluster. It does not contact the
// cluster; call Info to check connectivity.
func New(cfg config.Elasticsearch) (*Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			// Self-signed clusters are the common case for this tool.
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 4,
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
		// Bulk submissions are never retried.
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{es: es, timeout: cfg.Timeout}, nil
}

// ClusterInfo is the subset of GET / the tool displays.
type ClusterInfo struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	Version     struct {
		Number string `json:"number"`
	} `json:"version"`
}

// Info fetches basic cluster information.
func (c *Client) Info(ctx context.Context) (*ClusterInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("cluster info: %w", err)
	}
	var info ClusterInfo
	if err := decode(res, &info); err != nil {
		return nil, fmt.Errorf("cluster info: %w", err)
	}
	return &info, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// ResponseError is a non-2xx reply from Elasticsearch.
type ResponseError struct {
	StatusCode int
	Type       string
	Reason     string
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("elasticsearch returned %d: %s: %s", e.StatusCode, e.Type, e.Reason)
	}
	return fmt.Sprintf("elasticsearch returned %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from Elasticsearch.
func IsNotFound(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// decode closes the response body and, for a 2xx reply, unmarshals it into
// v (when v is non-nil). Other replies become *ResponseError.
func decode(res *esapi.Response, v any) error {
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		re := &ResponseError{StatusCode: res.StatusCode, Body: string(body)}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			re.Type = eb.Error.Type
			re.Reason = eb.Error.Reason
		}
		return re
	}
	if v == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
