package cueschema

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/qtoken/internal/extension"
	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/schema"
)

type typeDoc struct {
	Kind            string   `json:"kind"`
	Visibility      string   `json:"visibility"`
	Implementations []string `json:"implementations"`
}

type propertyDoc struct {
	Type            string   `json:"type"`
	Lite            bool     `json:"lite"`
	Collection      string   `json:"collection"` // "", list, mlist or query
	Ordered         bool     `json:"ordered"`
	FullText        bool     `json:"fulltext"`
	Implementations []string `json:"implementations"`
	Format          string   `json:"format"`
	Unit            string   `json:"unit"`
}

type extensionDoc struct {
	Expression      string   `json:"expression"`
	Name            string   `json:"name"`
	Format          string   `json:"format"`
	Unit            string   `json:"unit"`
	Projection      bool     `json:"projection"`
	Implementations []string `json:"implementations"`
}

type declared struct {
	name  string
	typ   *ir.Type
	doc   typeDoc
	value cue.Value
}

// Compile builds a frozen catalog and extension registry from a CUE value
// holding "type" and "extension" structs.
func Compile(v cue.Value) (*Result, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(ErrCodeBuildFailed, err)
	}
	l := &loader{
		catalog:    schema.NewCatalog(),
		extensions: extension.NewRegistry(),
		types:      make(map[string]*ir.Type),
	}

	decls, err := l.declare(lookup(v, "type"))
	if err != nil {
		return nil, err
	}
	for _, d := range decls {
		if err := l.define(d); err != nil {
			return nil, err
		}
	}
	if err := l.registerExtensions(lookup(v, "extension")); err != nil {
		return nil, err
	}

	l.catalog.Freeze()
	l.extensions.Freeze()
	if err := l.catalog.Visibility().Validate(l.catalog); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidExpression, Field: "visibility", Message: err.Error()}
	}
	return &Result{Catalog: l.catalog, Extensions: l.extensions}, nil
}

type loader struct {
	catalog    *schema.Catalog
	extensions *extension.Registry
	types      map[string]*ir.Type
}

// declare creates every declared type first so properties may refer to
// types declared later in the document.
func (l *loader) declare(v cue.Value) ([]declared, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, cueError(ErrCodeGeneric, err)
	}
	var out []declared
	for iter.Next() {
		name := iter.Label()
		var doc typeDoc
		if err := iter.Value().Decode(&doc); err != nil {
			return nil, cueError(ErrCodeGeneric, err)
		}
		var t *ir.Type
		switch doc.Kind {
		case "", "entity":
			t = ir.Entity(name)
		case "abstract":
			t = ir.AbstractEntity(name)
		case "embedded":
			t = ir.Embedded(name)
		default:
			return nil, &LoadError{
				Code:    ErrCodeInvalidKind,
				Field:   "type." + name + ".kind",
				Message: fmt.Sprintf("unknown kind %q: must be entity, abstract or embedded", doc.Kind),
				Pos:     iter.Value().Pos(),
			}
		}
		l.types[name] = t
		out = append(out, declared{name: name, typ: t, doc: doc, value: iter.Value()})
	}
	return out, nil
}

func (l *loader) define(d declared) error {
	field := "type." + d.name
	var props []*schema.Property

	propsVal := lookup(d.value, "properties")
	if propsVal.Exists() {
		iter, err := propsVal.Fields()
		if err != nil {
			return cueError(ErrCodeGeneric, err)
		}
		for iter.Next() {
			p, err := l.property(field+".properties", iter.Label(), iter.Value())
			if err != nil {
				return err
			}
			props = append(props, p)
		}
	}

	if err := l.catalog.Define(d.typ, props...); err != nil {
		return l.catalogError(field, err, d.value)
	}

	if len(d.doc.Implementations) > 0 {
		impls, err := l.implementations(field+".implementations", d.doc.Implementations, d.value)
		if err != nil {
			return err
		}
		if err := l.catalog.SetImplementations(d.typ, impls); err != nil {
			return l.catalogError(field, err, d.value)
		}
	}

	if d.doc.Visibility != "" {
		if err := l.catalog.Restrict(d.name, d.doc.Visibility); err != nil {
			return l.catalogError(field+".visibility", err, d.value)
		}
	}
	return nil
}

func (l *loader) property(field, name string, v cue.Value) (*schema.Property, error) {
	field += "." + name
	var doc propertyDoc
	if err := v.Decode(&doc); err != nil {
		return nil, cueError(ErrCodeGeneric, err)
	}

	t, err := l.typeRef(field+".type", doc.Type, v)
	if err != nil {
		return nil, err
	}
	if doc.Lite {
		if !t.IsEntity() {
			return nil, &LoadError{Code: ErrCodeInvalidProperty, Field: field, Message: fmt.Sprintf("lite requires an entity type, got %s", t), Pos: v.Pos()}
		}
		t = ir.LiteOf(t)
	}

	p := &schema.Property{
		Name:     name,
		Format:   doc.Format,
		Unit:     doc.Unit,
		FullText: doc.FullText,
	}
	switch doc.Collection {
	case "":
		p.Type = t
	case "list":
		p.Type = ir.CollectionOf(t)
	case "mlist":
		p.Type = ir.CollectionOf(t)
		p.MList = true
		p.PreserveOrder = doc.Ordered
	case "query":
		p.Type = ir.QueryableOf(t)
	default:
		return nil, &LoadError{
			Code:    ErrCodeInvalidProperty,
			Field:   field + ".collection",
			Message: fmt.Sprintf("unknown collection %q: must be list, mlist or query", doc.Collection),
			Pos:     v.Pos(),
		}
	}
	if doc.Ordered && !p.MList {
		return nil, &LoadError{Code: ErrCodeInvalidProperty, Field: field + ".ordered", Message: "ordered requires an mlist collection", Pos: v.Pos()}
	}

	if len(doc.Implementations) > 0 {
		impls, err := l.implementations(field+".implementations", doc.Implementations, v)
		if err != nil {
			return nil, err
		}
		p.Implementations = impls
	}
	return p, nil
}

func (l *loader) typeRef(field, name string, v cue.Value) (*ir.Type, error) {
	if t, ok := l.types[name]; ok {
		return t, nil
	}
	if t, ok := ir.Scalars[name]; ok {
		return t, nil
	}
	return nil, &LoadError{Code: ErrCodeUnknownType, Field: field, Message: fmt.Sprintf("unknown type %q", name), Pos: v.Pos()}
}

func (l *loader) implementations(field string, names []string, v cue.Value) (ir.Implementations, error) {
	types := make([]*ir.Type, 0, len(names))
	for _, n := range names {
		t, err := l.typeRef(field, n, v)
		if err != nil {
			return ir.Implementations{}, err
		}
		if !t.IsEntity() || t.Abstract {
			return ir.Implementations{}, &LoadError{Code: ErrCodeInvalidProperty, Field: field, Message: fmt.Sprintf("%s is not a concrete entity", n), Pos: v.Pos()}
		}
		types = append(types, t)
	}
	return ir.ImplementedBy(types...), nil
}

func (l *loader) registerExtensions(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	types, err := v.Fields()
	if err != nil {
		return cueError(ErrCodeGeneric, err)
	}
	for types.Next() {
		typeName := types.Label()
		on, ok := l.types[typeName]
		if !ok {
			return &LoadError{Code: ErrCodeUnknownType, Field: "extension." + typeName, Message: fmt.Sprintf("unknown type %q", typeName), Pos: types.Value().Pos()}
		}
		keys, err := types.Value().Fields()
		if err != nil {
			return cueError(ErrCodeGeneric, err)
		}
		for keys.Next() {
			if err := l.extension(on, keys.Label(), keys.Value()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *loader) extension(on *ir.Type, key string, v cue.Value) error {
	field := "extension." + on.Name + "." + key
	var doc extensionDoc
	if err := v.Decode(&doc); err != nil {
		return cueError(ErrCodeGeneric, err)
	}

	body, err := schema.ParseExpr(l.catalog, on, doc.Expression)
	if err != nil {
		return &LoadError{Code: ErrCodeInvalidExpression, Field: field + ".expression", Message: err.Error(), Pos: v.Pos()}
	}
	def := &extension.Definition{
		On:         on,
		Key:        key,
		Projection: doc.Projection,
		Format:     doc.Format,
		Unit:       doc.Unit,
		NiceName:   doc.Name,
		Expression: body,
	}
	if len(doc.Implementations) > 0 {
		impls, err := l.implementations(field+".implementations", doc.Implementations, v)
		if err != nil {
			return err
		}
		def.Implementations = impls
	}

	if err := l.extensions.Register(def); err != nil {
		msg := err.Error()
		var ce *extension.ConfigError
		if errors.As(err, &ce) && ce.Fix != "" {
			msg = fmt.Sprintf("%s (add implementations: [...] to the extension)", ce.Message)
		}
		return &LoadError{Code: ErrCodeInvalidExtension, Field: field, Message: msg, Pos: v.Pos()}
	}
	return nil
}

func (l *loader) catalogError(field string, err error, v cue.Value) error {
	var de *schema.DefinitionError
	if errors.As(err, &de) {
		return &LoadError{Code: ErrCodeInvalidProperty, Field: field, Message: de.Message, Pos: v.Pos()}
	}
	return &LoadError{Code: ErrCodeGeneric, Field: field, Message: err.Error(), Pos: v.Pos()}
}
