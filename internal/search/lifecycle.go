package search

import (
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esutil"
)

// ExplainedIndex is one entry of GET <pattern>/_ilm/explain.
type ExplainedIndex struct {
	Index               string `json:"index"`
	Managed             bool   `json:"managed"`
	Policy              string `json:"policy"`
	Phase               string `json:"phase"`
	Action              string `json:"action"`
	Step                string `json:"step"`
	LifecycleDateMillis int64  `json:"lifecycle_date_millis"`
}

// ExplainLifecycle returns the ILM state of every index matching pattern,
// keyed by index name.
func (c *Client) ExplainLifecycle(ctx context.Context, pattern string) (map[string]ExplainedIndex, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.ILM.ExplainLifecycle(pattern, c.es.ILM.ExplainLifecycle.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("explain lifecycle %s: %w", pattern, err)
	}
	var body struct {
		Indices map[string]ExplainedIndex `json:"indices"`
	}
	if err := decode(res, &body); err != nil {
		return nil, fmt.Errorf("explain lifecycle %s: %w", pattern, err)
	}
	return body.Indices, nil
}

// Policy is the part of an ILM policy the status report reads.
type Policy struct {
	Policy struct {
		Phases map[string]Phase `json:"phases"`
	} `json:"policy"`
}

// Phase is one ILM phase.
type Phase struct {
	MinAge  string         `json:"min_age,omitempty"`
	Actions map[string]any `json:"actions"`
}

// GetPolicies returns every ILM policy keyed by name.
func (c *Client) GetPolicies(ctx context.Context) (map[string]Policy, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.ILM.GetLifecycle(c.es.ILM.GetLifecycle.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get lifecycle policies: %w", err)
	}
	policies := make(map[string]Policy)
	if err := decode(res, &policies); err != nil {
		return nil, fmt.Errorf("get lifecycle policies: %w", err)
	}
	return policies, nil
}

// PutPolicy creates or replaces an ILM policy with the given phases.
func (c *Client) PutPolicy(ctx context.Context, name string, phases map[string]Phase) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body := map[string]any{"policy": map[string]any{"phases": phases}}
	res, err := c.es.ILM.PutLifecycle(name,
		c.es.ILM.PutLifecycle.WithBody(esutil.NewJSONReader(body)),
		c.es.ILM.PutLifecycle.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("put lifecycle policy %s: %w", name, err)
	}
	if err := decode(res, nil); err != nil {
		return fmt.Errorf("put lifecycle policy %s: %w", name, err)
	}
	return nil
}

// DeletePolicy removes an ILM policy.
func (c *Client) DeletePolicy(ctx context.Context, name string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.ILM.DeleteLifecycle(name, c.es.ILM.DeleteLifecycle.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete lifecycle policy %s: %w", name, err)
	}
	if err := decode(res, nil); err != nil {
		return fmt.Errorf("delete lifecycle policy %s: %w", name, err)
	}
	return nil
}
