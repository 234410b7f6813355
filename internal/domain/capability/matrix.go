package capability

import (
	"encoding/json"
	"fmt"
	"strings"

	"rpc-scanner/internal/pkg/apperrors"
)

// Template placeholders understood by Params and validator expectations.
const (
	PlaceholderAccount = "{{account}}"
	PlaceholderPost    = "{{post}}"
	PlaceholderPrefix  = "{{prefix}}"
)

// ExtraStage names the stage built from methods added with FilterOptions.Extra.
const ExtraStage = "extra"

// ProbeDefinition is one capability test: an RPC method, a JSON parameter template and its validators.
type ProbeDefinition struct {
	Method     string
	Params     string
	Validators []Validator
}

// Stage is an ordered group of probes that pass together.
type Stage struct {
	Name   string
	Probes []ProbeDefinition
}

// Bindings are the values substituted into parameter templates and expectations.
type Bindings struct {
	Account   string
	Post      string
	PubPrefix string
}

// FilterOptions narrows or extends the catalogue.
type FilterOptions struct {
	// Only keeps just these methods when non-empty.
	Only []string
	// Skip drops these methods.
	Skip []string
	// Extra appends methods checked for a non-empty result.
	Extra []string
}

var defaultStages = []Stage{
	{
		Name: "accounts",
		Probes: []ProbeDefinition{
			{
				Method: "condenser_api.get_accounts",
				Params: `[["{{account}}"]]`,
				Validators: []Validator{
					AtLeast(RootPath, 1),
					Equals("0.name", PlaceholderAccount),
				},
			},
			{
				Method: "condenser_api.get_witness_by_account",
				Params: `["{{account}}"]`,
				Validators: []Validator{
					Equals("owner", PlaceholderAccount),
					HasPrefix("signing_key", PlaceholderPrefix),
				},
			},
		},
	},
	{
		Name: "content",
		Probes: []ProbeDefinition{
			{
				Method: "condenser_api.get_blog",
				Params: `["{{account}}", -1, 10]`,
				Validators: []Validator{
					AtLeast(RootPath, 10),
					HasKeys(RootPath, "blog", "entry_id", "comment").ForEach(),
					HasKeys("#.comment", "body").ForEach(),
				},
			},
			{
				Method: "condenser_api.get_content",
				Params: `["{{account}}", "{{post}}"]`,
				Validators: []Validator{
					HasKeys(RootPath, "body", "author", "category", "title"),
					Equals("author", PlaceholderAccount),
				},
			},
			{
				Method: "condenser_api.get_followers",
				Params: `["{{account}}", null, "blog", 10]`,
				Validators: []Validator{
					AtLeast(RootPath, 10),
					HasKeys(RootPath, "follower", "following", "what").ForEach(),
				},
			},
			{
				Method: "bridge.get_trending_topics",
				Params: `{"limit": 10}`,
				Validators: []Validator{
					AtLeast(RootPath, 1),
					Between(RootPath, 2, 2).ForEach(),
					HasPrefix("#.0", "hive-").ForEach(),
				},
			},
		},
	},
	{
		Name: "history",
		Probes: []ProbeDefinition{
			{
				Method: "condenser_api.get_account_history",
				Params: `["{{account}}", -100, 100]`,
				Validators: []Validator{
					AtLeast(RootPath, 5),
					AtLeast("0.0", 0),
					NonEmpty("0.1"),
				},
			},
			{
				Method: "account_history_api.get_account_history",
				Params: `{"account": "{{account}}", "start": -1, "limit": 100}`,
				Validators: []Validator{
					AtLeast("history", 5),
					AtLeast("history.0.0", 0),
					NonEmpty("history.0.1"),
				},
			},
		},
	},
}

// Matrix is the ordered, immutable capability catalogue bound to a test account and key prefix.
// It is safe for concurrent use.
type Matrix struct {
	stages   []Stage
	bindings Bindings
	replacer *strings.Replacer
}

// Default returns the built-in catalogue bound to b.
func Default(b Bindings) *Matrix {
	return New(b, defaultStages...)
}

// New builds a matrix from stages. Stages and probes keep their given order.
func New(b Bindings, stages ...Stage) *Matrix {
	copied := make([]Stage, len(stages))
	for i, s := range stages {
		probes := make([]ProbeDefinition, len(s.Probes))
		copy(probes, s.Probes)
		copied[i] = Stage{Name: s.Name, Probes: probes}
	}
	return &Matrix{
		stages:   copied,
		bindings: b,
		replacer: strings.NewReplacer(
			PlaceholderAccount, b.Account,
			PlaceholderPost, b.Post,
			PlaceholderPrefix, b.PubPrefix,
		),
	}
}

// Bindings returns the values the matrix substitutes into templates.
func (m *Matrix) Bindings() Bindings {
	return m.bindings
}

// Stages returns the stages in catalogue order.
func (m *Matrix) Stages() []Stage {
	out := make([]Stage, len(m.stages))
	copy(out, m.stages)
	return out
}

// TotalStages is the number of stages in the catalogue.
func (m *Matrix) TotalStages() int {
	return len(m.stages)
}

// TotalProbes is the number of probe definitions across all stages.
func (m *Matrix) TotalProbes() int {
	n := 0
	for _, s := range m.stages {
		n += len(s.Probes)
	}
	return n
}

// Methods lists every probed method in catalogue order.
func (m *Matrix) Methods() []string {
	out := make([]string, 0, m.TotalProbes())
	for _, s := range m.stages {
		for _, p := range s.Probes {
			out = append(out, p.Method)
		}
	}
	return out
}

// Lookup finds the definition of method and the stage it belongs to.
func (m *Matrix) Lookup(method string) (ProbeDefinition, string, bool) {
	for _, s := range m.stages {
		for _, p := range s.Probes {
			if p.Method == method {
				return p, s.Name, true
			}
		}
	}
	return ProbeDefinition{}, "", false
}

// Filter returns a new matrix narrowed and extended by opts. Stages left without probes are dropped.
func (m *Matrix) Filter(opts FilterOptions) *Matrix {
	only := toSet(opts.Only)
	skip := toSet(opts.Skip)

	stages := make([]Stage, 0, len(m.stages)+1)
	known := make(map[string]struct{})
	for _, s := range m.stages {
		kept := Stage{Name: s.Name}
		for _, p := range s.Probes {
			known[p.Method] = struct{}{}
			if _, skipped := skip[p.Method]; skipped {
				continue
			}
			if len(only) > 0 {
				if _, ok := only[p.Method]; !ok {
					continue
				}
			}
			kept.Probes = append(kept.Probes, p)
		}
		if len(kept.Probes) > 0 {
			stages = append(stages, kept)
		}
	}

	extra := Stage{Name: ExtraStage}
	for _, method := range opts.Extra {
		method = strings.TrimSpace(method)
		if method == "" {
			continue
		}
		if _, dup := known[method]; dup {
			continue
		}
		known[method] = struct{}{}
		extra.Probes = append(extra.Probes, AdHoc(method, ""))
	}
	if len(extra.Probes) > 0 {
		stages = append(stages, extra)
	}

	return New(m.bindings, stages...)
}

// AdHoc defines a probe for a method outside the catalogue. It passes when the result is non-empty.
func AdHoc(method, params string) ProbeDefinition {
	if strings.TrimSpace(params) == "" {
		params = "[]"
	}
	return ProbeDefinition{
		Method:     method,
		Params:     params,
		Validators: []Validator{NonEmpty(RootPath)},
	}
}

// Params renders the parameter template of def with the matrix bindings.
// String values are JSON-escaped before substitution.
func (m *Matrix) Params(def ProbeDefinition) (json.RawMessage, error) {
	tmpl := def.Params
	if strings.TrimSpace(tmpl) == "" {
		tmpl = "[]"
	}

	quoted := strings.NewReplacer(
		`"`+PlaceholderAccount+`"`, jsonString(m.bindings.Account),
		`"`+PlaceholderPost+`"`, jsonString(m.bindings.Post),
		`"`+PlaceholderPrefix+`"`, jsonString(m.bindings.PubPrefix),
	)
	rendered := quoted.Replace(tmpl)

	if !json.Valid([]byte(rendered)) {
		return nil, fmt.Errorf("%w: params for %s are not valid JSON: %s", apperrors.ErrInvalidInput, def.Method, rendered)
	}
	return json.RawMessage(rendered), nil
}

// Validate evaluates every validator of def against result and returns the first failure.
func (m *Matrix) Validate(def ProbeDefinition, result json.RawMessage) error {
	for _, v := range def.Validators {
		if err := evaluate(v, result, m.replacer.Replace); err != nil {
			return fmt.Errorf("%s: %w", def.Method, err)
		}
	}
	return nil
}

func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			set[it] = struct{}{}
		}
	}
	return set
}
