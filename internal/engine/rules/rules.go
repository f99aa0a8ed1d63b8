// Package rules compiles user-defined heuristics written as expr-lang
// expressions. Compiled rules plug into the classifier next to the built-in
// heuristics and only ever add to a record's score.
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/sectriage/internal/engine/classifier"
	"github.com/crimson-sun/sectriage/internal/model"
)

// Spec is one rule as written in the rules file.
type Spec struct {
	Name   string `yaml:"name"`
	When   string `yaml:"when"`
	Score  int    `yaml:"score"`
	Reason string `yaml:"reason"`
}

// File is the top-level layout of a rules file.
type File struct {
	Rules []Spec `yaml:"rules"`
}

// Env is the evaluation environment exposed to rule expressions.
type Env struct {
	EventID     int
	Computer    string
	User        string
	ProcessName string
	LogonType   string
	Fields      map[string]any
}

// IContains reports whether sub occurs in s, ignoring case.
func (Env) IContains(s, sub string) bool {
	return strings.Contains(cases.Fold().String(s), cases.Fold().String(sub))
}

// Field returns a record field rendered as a string, or "" if absent.
func (e Env) Field(name string) string {
	switch v := e.Fields[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Rule is a compiled Spec. It implements classifier.Heuristic.
type Rule struct {
	spec    Spec
	program *vm.Program
}

var _ classifier.Heuristic = (*Rule)(nil)

// Name returns the rule's configured name.
func (r *Rule) Name() string { return r.spec.Name }

// Evaluate runs the rule against rec. Runtime errors are logged at debug
// level and treated as a non-match.
func (r *Rule) Evaluate(rec model.Record) (classifier.Hit, bool) {
	env := Env{
		EventID:     rec.EventID,
		Computer:    rec.Computer,
		User:        rec.User,
		ProcessName: rec.ProcessName,
		LogonType:   rec.LogonType,
		Fields:      rec.Fields,
	}
	out, err := expr.Run(r.program, env)
	if err != nil {
		slog.Debug("rule evaluation failed", "rule", r.spec.Name, "event_id", rec.EventID, "error", err)
		return classifier.Hit{}, false
	}
	if matched, _ := out.(bool); !matched {
		return classifier.Hit{}, false
	}
	return classifier.Hit{Score: r.spec.Score, Reason: expandReason(r.spec, rec)}, true
}

// Compile validates and compiles specs in order.
func Compile(specs []Spec) ([]*Rule, error) {
	seen := make(map[string]bool, len(specs))
	out := make([]*Rule, 0, len(specs))
	for i, s := range specs {
		if err := validate(s); err != nil {
			return nil, fmt.Errorf("rules: rule %d: %w", i, err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("rules: duplicate rule name %q", s.Name)
		}
		seen[s.Name] = true

		program, err := expr.Compile(s.When, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("rules: compile %q: %w", s.Name, err)
		}
		out = append(out, &Rule{spec: s, program: program})
	}
	return out, nil
}

// Parse decodes and compiles a YAML rules document.
func Parse(data []byte) ([]*Rule, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("rules: parse: %w", err)
	}
	return Compile(f.Rules)
}

// LoadFile reads and compiles a YAML rules file.
func LoadFile(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return Parse(data)
}

// Heuristics converts compiled rules into classifier heuristics.
func Heuristics(rs []*Rule) []classifier.Heuristic {
	hs := make([]classifier.Heuristic, len(rs))
	for i, r := range rs {
		hs[i] = r
	}
	return hs
}

func validate(s Spec) error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return errors.New("name is required")
	case strings.TrimSpace(s.When) == "":
		return fmt.Errorf("%q: when is required", s.Name)
	case s.Score < 1:
		return fmt.Errorf("%q: score must be at least 1, got %d", s.Name, s.Score)
	}
	return nil
}

func expandReason(s Spec, rec model.Record) string {
	if s.Reason == "" {
		return "Rule matched: " + s.Name
	}
	r := strings.NewReplacer(
		"{EventID}", strconv.Itoa(rec.EventID),
		"{Computer}", rec.Computer,
		"{User}", rec.User,
		"{ProcessName}", rec.ProcessName,
		"{LogonType}", rec.LogonType,
	)
	return r.Replace(s.Reason)
}
