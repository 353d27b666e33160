package compare

import (
	"fmt"
	"log/slog"
	"strings"

	"dupetag/internal/logging"
	"dupetag/internal/scene"
)

// ReasonMatchingIDs is returned when a record is compared with itself.
const ReasonMatchingIDs = "matching IDs"

// Options configures a Chain.
type Options struct {
	Logger *slog.Logger
	// Rules adds or overrides registry entries by name. Nil uses the registry only.
	Rules map[string]Rule
}

type namedRule struct {
	name string
	rule Rule
}

// Chain applies comparator rules in a fixed order.
type Chain struct {
	rules  []namedRule
	logger *slog.Logger
}

// NewChain builds a chain from rule names in priority order. It fails with a
// *ConfigError when the list is empty, names an unknown rule, or repeats one.
func NewChain(names []string, opts Options) (*Chain, error) {
	if len(names) == 0 {
		return nil, &ConfigError{Reason: "no comparator rules configured"}
	}
	seen := make(map[string]struct{}, len(names))
	rules := make([]namedRule, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if _, dup := seen[name]; dup {
			return nil, &ConfigError{Rule: name, Reason: "rule listed more than once"}
		}
		seen[name] = struct{}{}

		rule, ok := opts.Rules[name]
		if !ok {
			rule, ok = registry[name]
		}
		if !ok || rule == nil {
			return nil, &ConfigError{Rule: name, Reason: fmt.Sprintf("unknown rule (available: %s)", strings.Join(RuleNames(), ", "))}
		}
		rules = append(rules, namedRule{name: name, rule: rule})
	}
	return &Chain{rules: rules, logger: logging.NewComponentLogger(opts.Logger, "comparator")}, nil
}

// Names returns the rule names in evaluation order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.name
	}
	return names
}

// Evaluate compares a and b. The first rule with an opinion decides; when no
// rule has one the verdict is undecided and explains the deadlock.
func (c *Chain) Evaluate(a, b *scene.Record) Verdict {
	if a.ID == b.ID {
		return Verdict{Reason: ReasonMatchingIDs}
	}
	for _, r := range c.rules {
		verdict, err := c.apply(r, a, b)
		if err != nil {
			logging.ErrorWithContext(c.logger, "comparator failed", "comparator_error",
				logging.String("rule", r.name),
				logging.Int64("a_id", a.ID),
				logging.Int64("b_id", b.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rule skipped for this pair; remaining rules still apply"),
			)
			continue
		}
		if !verdict.Decided() {
			continue
		}
		if verdict.Preferred != a && verdict.Preferred != b {
			c.logger.Error("comparator preferred a record outside the pair",
				logging.String("rule", r.name),
				logging.Int64("a_id", a.ID),
				logging.Int64("b_id", b.ID),
			)
			continue
		}
		verdict.Rule = r.name
		return verdict
	}
	return Verdict{Reason: fmt.Sprintf("%d not worse than %d", a.ID, b.ID)}
}

func (c *Chain) apply(r namedRule, a, b *scene.Record) (verdict Verdict, err error) {
	defer func() {
		if p := recover(); p != nil {
			verdict = Verdict{}
			err = &ComparatorError{Rule: r.name, A: a.ID, B: b.ID, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	verdict, err = r.rule.Compare(a, b)
	if err != nil {
		return Verdict{}, &ComparatorError{Rule: r.name, A: a.ID, B: b.ID, Err: err}
	}
	return verdict, nil
}
