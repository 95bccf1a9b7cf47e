// Package extension holds computed columns registered by collaborators and
// exposed through the token graph as if they were native properties.
//
// Registration is fail-fast: a definition whose value type is entity-like
// must carry an implementation set, and when that set cannot be derived
// the registration call itself fails with a message naming the fix. The
// problem is reported to the extension's author at startup, never to a
// query caller at compile time.
package extension

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
)

// Definition describes one extension.
type Definition struct {
	// On is the declaring type: every token whose (clean) type is On
	// offers the extension as a sub-token.
	On *ir.Type

	// Key is the sub-token key; unique per declaring type.
	Key string

	// Type is the value type. For projections it is a collection type and
	// is inferred from Expression when nil.
	Type *ir.Type

	// Projection marks a per-element extension over a sub-collection.
	// Format and Unit then describe the elements, not the collection.
	Projection bool

	// Implementations is required when the value type (element type for
	// projections) is entity-like. See Prepare for derivation.
	Implementations ir.Implementations

	Format string
	Unit   string

	// Allowed returns a denial reason or "". Nil means always allowed.
	Allowed func() string

	// NiceName overrides the display name derived from Key.
	NiceName string

	// Expression computes the value from the declaring entity: λself.E.
	Expression *expr.Lambda
}

// ValueType returns the type whose implementations matter: the element
// type for projections, the value type otherwise.
func (d *Definition) ValueType() *ir.Type {
	if d.Projection && d.Type != nil {
		return d.Type.ElementType()
	}
	return d.Type
}

// DisplayName returns NiceName, or a humanized Key.
func (d *Definition) DisplayName() string {
	if d.NiceName != "" {
		return d.NiceName
	}
	return inflect.Humanize(inflect.Underscore(d.Key))
}

// IsAllowed evaluates the allow function.
func (d *Definition) IsAllowed() string {
	if d.Allowed == nil {
		return ""
	}
	return d.Allowed()
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s.%s", d.On, d.Key)
}

// ImplementationsFix is the registration statement suggested when an
// implementation set is missing.
const ImplementationsFix = "Definition.Implementations = ir.ImplementedBy(...)"

// ConfigError reports an extension that cannot be registered.
type ConfigError struct {
	On      string
	Key     string
	Message string
	Fix     string // statement the author must add, if any
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("extension %s.%s: %s", e.On, e.Key, e.Message)
	if e.Fix != "" {
		msg += "; set " + e.Fix + " when registering it"
	}
	return msg
}

// IsConfigError reports whether err is a *ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Prepare validates def and returns a normalized copy: Type inferred from
// Expression when nil, implementations derived when possible.
//
// Implementations are derived automatically only for a scalar (non
// projection) extension whose clean value type is a concrete entity; the
// derived set is ImplementedBy(T). Abstract entities and projections over
// entities must declare the set explicitly.
func Prepare(def *Definition) (*Definition, error) {
	out := *def
	fail := func(msg, fix string) (*Definition, error) {
		return nil, &ConfigError{On: def.On.String(), Key: def.Key, Message: msg, Fix: fix}
	}

	if def.On == nil || def.Key == "" {
		return fail("declaring type and key are required", "")
	}
	if strings.ContainsAny(def.Key, ".()/ ") {
		return fail(fmt.Sprintf("key %q contains reserved characters", def.Key), "")
	}
	if def.Expression == nil || len(def.Expression.Params) != 1 {
		return fail("expression must be a lambda of one parameter", "")
	}
	if !ir.Equal(def.Expression.Params[0].Type().CleanType(), def.On.CleanType()) {
		return fail(fmt.Sprintf("expression parameter has type %s", def.Expression.Params[0].Type()), "")
	}
	if out.Type == nil {
		out.Type = def.Expression.Type()
	}
	if out.Projection && !out.Type.IsSequence() {
		return fail(fmt.Sprintf("projection needs a collection type, got %s", out.Type), "")
	}

	vt := out.ValueType().CleanType()
	if vt.IsEntity() && out.Implementations.IsEmpty() {
		if out.Projection || vt.Abstract {
			return fail(fmt.Sprintf("value type %s is entity-like and has no implementations", out.ValueType()), ImplementationsFix)
		}
		out.Implementations = ir.ImplementedBy(vt)
	}
	return &out, nil
}

// Registry maps declaring types to extension definitions. It is populated
// during startup and read-only after Freeze.
type Registry struct {
	defs   map[string]map[string]*Definition
	frozen bool
}

// ErrFrozen is returned by Register after Freeze.
var ErrFrozen = errors.New("extension: registry is frozen")

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]map[string]*Definition)}
}

// Register validates and stores def.
func (r *Registry) Register(def *Definition) error {
	if r.frozen {
		return ErrFrozen
	}
	prepared, err := Prepare(def)
	if err != nil {
		return err
	}
	on := prepared.On.CleanType().Name
	byKey, ok := r.defs[on]
	if !ok {
		byKey = make(map[string]*Definition)
		r.defs[on] = byKey
	}
	if _, dup := byKey[prepared.Key]; dup {
		return &ConfigError{On: on, Key: prepared.Key, Message: "already registered"}
	}
	byKey[prepared.Key] = prepared
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() { r.frozen = true }

// Lookup returns the extensions declared on t, sorted by key.
// A nil registry has no extensions.
func (r *Registry) Lookup(t *ir.Type) []*Definition {
	if r == nil || t == nil {
		return nil
	}
	byKey := r.defs[t.CleanType().Name]
	out := make([]*Definition, 0, len(byKey))
	for _, d := range byKey {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *Definition) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// Get returns the extension key on t.
func (r *Registry) Get(t *ir.Type, key string) (*Definition, bool) {
	if r == nil || t == nil {
		return nil, false
	}
	d, ok := r.defs[t.CleanType().Name][key]
	return d, ok
}

// Len returns the number of registered extensions.
func (r *Registry) Len() int {
	n := 0
	for _, byKey := range r.defs {
		n += len(byKey)
	}
	return n
}
