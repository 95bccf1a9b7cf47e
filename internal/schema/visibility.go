package schema

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
)

// Rule computes the visibility predicate of an entity type.
type Rule func(p Provider, t *ir.Type) (*expr.Lambda, error)

// CEL returns a Rule that compiles src as a CEL predicate over the entity.
func CEL(src string) Rule {
	return func(p Provider, t *ir.Type) (*expr.Lambda, error) {
		return ParsePredicate(p, t, src)
	}
}

type compiled struct {
	pred *expr.Lambda
	err  error
}

// Visibility maps entity types to row-level predicates.
//
// Rules are registered during the build phase. Predicates are compiled
// lazily on first lookup and cached with insert-if-absent semantics:
// concurrent first lookups of the same type compute the predicate once and
// all observe the same result. A rule that fails to compile yields a
// constant-false predicate, so a broken rule hides rows instead of
// exposing them.
type Visibility struct {
	mu     sync.RWMutex
	rules  map[string]Rule
	frozen bool

	cache  sync.Map // type name → compiled
	group  singleflight.Group
	logger *slog.Logger
}

// NewVisibility creates an empty registry.
func NewVisibility() *Visibility {
	return &Visibility{
		rules:  make(map[string]Rule),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger used to report rules that fail to compile.
func (v *Visibility) SetLogger(l *slog.Logger) {
	if l != nil {
		v.logger = l
	}
}

// Define registers the rule for typeName. Each type has at most one rule.
func (v *Visibility) Define(typeName string, r Rule) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.frozen {
		return ErrFrozen
	}
	if _, exists := v.rules[typeName]; exists {
		return &DefinitionError{Type: typeName, Message: "visibility rule already defined"}
	}
	v.rules[typeName] = r
	return nil
}

// Freeze ends the build phase.
func (v *Visibility) Freeze() {
	v.mu.Lock()
	v.frozen = true
	v.mu.Unlock()
}

// Types returns the names of types that carry a rule.
func (v *Visibility) Types() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.rules))
	for name := range v.rules {
		out = append(out, name)
	}
	return out
}

// Predicate returns the compiled predicate for t, compiling it on first use.
func (v *Visibility) Predicate(p Provider, t *ir.Type) (*expr.Lambda, bool) {
	t = t.CleanType()
	if !t.IsEntity() {
		return nil, false
	}
	c, ok := v.lookup(p, t)
	if !ok {
		return nil, false
	}
	if c.err != nil {
		return denyAll(t), true
	}
	return c.pred, true
}

// Validate compiles every registered rule and reports all failures.
func (v *Visibility) Validate(p Provider) error {
	var errs []error
	for _, name := range v.Types() {
		t, ok := p.Type(name)
		if !ok {
			errs = append(errs, &DefinitionError{Type: name, Message: "visibility rule for unknown type"})
			continue
		}
		if c, ok := v.lookup(p, t); ok && c.err != nil {
			errs = append(errs, c.err)
		}
	}
	return errors.Join(errs...)
}

func (v *Visibility) lookup(p Provider, t *ir.Type) (compiled, bool) {
	if c, ok := v.cache.Load(t.Name); ok {
		return c.(compiled), true
	}
	v.mu.RLock()
	rule, ok := v.rules[t.Name]
	v.mu.RUnlock()
	if !ok {
		return compiled{}, false
	}

	res, _, _ := v.group.Do(t.Name, func() (any, error) {
		if c, ok := v.cache.Load(t.Name); ok {
			return c, nil
		}
		pred, err := rule(p, t)
		if err != nil {
			err = fmt.Errorf("visibility rule for %s: %w", t.Name, err)
			v.logger.Warn("visibility rule failed to compile", "type", t.Name, "error", err)
		}
		actual, _ := v.cache.LoadOrStore(t.Name, compiled{pred: pred, err: err})
		return actual, nil
	})
	return res.(compiled), true
}

func denyAll(t *ir.Type) *expr.Lambda {
	return expr.Fn(expr.Param("self", t), expr.Const(ir.BoolValue(false)))
}
