// Package lifecycle bootstraps and tears down the ILM objects behind the
// rollover alias: the policy, the composable index template and the first
// backing index.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"leakctl/internal/config"
	"leakctl/internal/search"
)

// Admin is the part of the search client used for setup and teardown.
type Admin interface {
	PutPolicy(ctx context.Context, name string, phases map[string]search.Phase) error
	DeletePolicy(ctx context.Context, name string) error
	PutIndexTemplate(ctx context.Context, name string, body any) error
	DeleteIndexTemplate(ctx context.Context, name string) error
	AliasExists(ctx context.Context, alias string) (bool, error)
	CreateIndex(ctx context.Context, index string, body any) error
	ListIndices(ctx context.Context, pattern string) ([]string, error)
	DeleteIndex(ctx context.Context, index string, ignoreUnavailable bool) (bool, error)
}

// Manager runs lifecycle operations for one configured alias.
type Manager struct {
	admin  Admin
	cfg    config.Config
	logger *slog.Logger
}

// New creates a Manager. A nil logger uses slog.Default.
func New(admin Admin, cfg config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{admin: admin, cfg: cfg, logger: logger}
}

// Phases builds the ILM policy: roll over in the hot phase, delete after
// the configured minimum age.
func Phases(lc config.Lifecycle) map[string]search.Phase {
	rollover := map[string]any{}
	if lc.RolloverMaxSize != "" {
		rollover["max_primary_shard_size"] = lc.RolloverMaxSize
	}
	if lc.RolloverMaxAge != "" {
		rollover["max_age"] = lc.RolloverMaxAge
	}
	phases := map[string]search.Phase{
		"hot": {
			MinAge:  "0ms",
			Actions: map[string]any{"rollover": rollover},
		},
	}
	if lc.DeleteMinAge != "" {
		phases["delete"] = search.Phase{
			MinAge:  lc.DeleteMinAge,
			Actions: map[string]any{"delete": map[string]any{}},
		}
	}
	return phases
}

// Mappings describes the document fields written by ingestion.
func Mappings() map[string]any {
	return map[string]any{
		"properties": map[string]any{
			"content":     map[string]any{"type": "text"},
			"file_name":   map[string]any{"type": "keyword"},
			"line_number": map[string]any{"type": "long"},
			"@timestamp":  map[string]any{"type": "date"},
		},
	}
}

// TemplateBody is the composable template applied to every backing index.
func TemplateBody(cfg config.Config) map[string]any {
	return map[string]any{
		"index_patterns": []string{cfg.IndexPattern()},
		"template": map[string]any{
			"settings": map[string]any{
				"index.lifecycle.name":           cfg.Policy,
				"index.lifecycle.rollover_alias": cfg.Alias,
			},
			"mappings": Mappings(),
		},
	}
}

// SetupResult reports what Setup changed.
type SetupResult struct {
	Policy   string
	Template string
	// Bootstrapped is set when the first backing index was created; false
	// means the alias already existed and was left alone.
	Bootstrapped bool
	FirstIndex   string
}

// Setup puts the policy and template and creates the first backing index
// with the alias as its write index, unless the alias already exists. It
// is safe to run repeatedly.
func (m *Manager) Setup(ctx context.Context) (*SetupResult, error) {
	res := &SetupResult{Policy: m.cfg.Policy, Template: m.cfg.Template, FirstIndex: m.cfg.FirstIndex()}

	if err := m.admin.PutPolicy(ctx, m.cfg.Policy, Phases(m.cfg.Lifecycle)); err != nil {
		return res, err
	}
	m.logger.Debug("policy stored", "policy", m.cfg.Policy)

	if err := m.admin.PutIndexTemplate(ctx, m.cfg.Template, TemplateBody(m.cfg)); err != nil {
		return res, err
	}
	m.logger.Debug("template stored", "template", m.cfg.Template, "pattern", m.cfg.IndexPattern())

	exists, err := m.admin.AliasExists(ctx, m.cfg.Alias)
	if err != nil {
		return res, err
	}
	if exists {
		return res, nil
	}

	body := map[string]any{
		"aliases": map[string]any{
			m.cfg.Alias: map[string]any{"is_write_index": true},
		},
	}
	if err := m.admin.CreateIndex(ctx, res.FirstIndex, body); err != nil {
		return res, err
	}
	res.Bootstrapped = true
	return res, nil
}

// Step is the outcome of one teardown action.
type Step struct {
	Action string
	Target string
	Err    error
}

func (s Step) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s %s: %v", s.Action, s.Target, s.Err)
	}
	return fmt.Sprintf("%s %s: ok", s.Action, s.Target)
}

// Clean deletes the policy, the template, the first backing index and then
// every remaining index matching the prefix pattern. A failed step is
// logged and recorded; the remaining steps still run. A missing first index
// is reported as a failed step.
func (m *Manager) Clean(ctx context.Context) []Step {
	var steps []Step
	record := func(action, target string, err error) {
		if err != nil {
			m.logger.Warn("clean step failed", "action", action, "target", target, "err", err)
		}
		steps = append(steps, Step{Action: action, Target: target, Err: err})
	}

	record("delete policy", m.cfg.Policy, m.admin.DeletePolicy(ctx, m.cfg.Policy))
	record("delete template", m.cfg.Template, m.admin.DeleteIndexTemplate(ctx, m.cfg.Template))

	first := m.cfg.FirstIndex()
	_, err := m.admin.DeleteIndex(ctx, first, false)
	record("delete index", first, err)

	names, err := m.admin.ListIndices(ctx, m.cfg.IndexPattern())
	if err != nil {
		record("list indices", m.cfg.IndexPattern(), err)
		return steps
	}
	for _, name := range names {
		if name == first {
			continue
		}
		_, err := m.admin.DeleteIndex(ctx, name, true)
		record("delete index", name, err)
	}
	return steps
}

// Failed counts the steps that returned an error.
func Failed(steps []Step) int {
	n := 0
	for _, s := range steps {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// DeleteIndex removes a single index, defaulting to the first backing
// index when name is empty. A missing index is not an error.
func (m *Manager) DeleteIndex(ctx context.Context, name string) (string, bool, error) {
	if name == "" {
		name = m.cfg.FirstIndex()
	}
	ack, err := m.admin.DeleteIndex(ctx, name, true)
	return name, ack, err
}
