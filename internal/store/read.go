package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/schema"
)

// Reserved column names.
const (
	idColumn       = "id"
	parentColumn   = "parent_id"
	rowOrderColumn = "row_order"
)

// ImportError reports a table that cannot be mapped onto the catalog.
type ImportError struct {
	Table   string
	Message string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s: %s", e.Table, e.Message)
}

type column struct {
	name     string
	declType string
	ref      string // referenced table of a foreign key, if any
}

type table struct {
	name    string
	columns []column
}

func (t *table) column(name string) (column, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

// parent returns the owning table of an MList table.
func (t *table) parent() (string, bool) {
	c, ok := t.column(parentColumn)
	if !ok || c.ref == "" {
		return "", false
	}
	return c.ref, true
}

// ImportCatalog reads the database tables and builds a frozen catalog.
func (s *Store) ImportCatalog(ctx context.Context) (*schema.Catalog, error) {
	tables, err := s.readTables(ctx)
	if err != nil {
		return nil, err
	}
	im := &importer{
		catalog: schema.NewCatalog(),
		tables:  tables,
		types:   make(map[string]*ir.Type),
		props:   make(map[string][]*schema.Property),
	}
	if err := im.build(); err != nil {
		return nil, err
	}
	if err := s.readVisibility(ctx, im.catalog); err != nil {
		return nil, err
	}
	if err := s.readFormats(ctx, im.catalog); err != nil {
		return nil, err
	}

	im.catalog.Freeze()
	if err := im.catalog.Visibility().Validate(im.catalog); err != nil {
		return nil, fmt.Errorf("import visibility: %w", err)
	}
	return im.catalog, nil
}

// readTables returns the user tables in creation order.
func (s *Store) readTables(ctx context.Context) ([]*table, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE 'qtoken_%'
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	tables := make([]*table, 0, len(names))
	for _, name := range names {
		t, err := s.readTable(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (s *Store) readTable(ctx context.Context, name string) (*table, error) {
	refs := make(map[string]string)
	fkRows, err := s.db.QueryContext(ctx, `SELECT "from", "table" FROM pragma_foreign_key_list(?)`, name)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys of %s: %w", name, err)
	}
	for fkRows.Next() {
		var from, to string
		if err := fkRows.Scan(&from, &to); err != nil {
			fkRows.Close()
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		refs[from] = to
	}
	fkRows.Close()
	if err := fkRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, name)
	if err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", name, err)
	}
	defer rows.Close()

	t := &table{name: name}
	for rows.Next() {
		var c column
		if err := rows.Scan(&c.name, &c.declType); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.ref = refs[c.name]
		t.columns = append(t.columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return t, nil
}

func (s *Store) readVisibility(ctx context.Context, c *schema.Catalog) error {
	rows, err := s.db.QueryContext(ctx, `SELECT type_name, predicate FROM qtoken_visibility ORDER BY type_name`)
	if err != nil {
		return fmt.Errorf("query visibility: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typeName, predicate string
		if err := rows.Scan(&typeName, &predicate); err != nil {
			return fmt.Errorf("scan visibility: %w", err)
		}
		if _, ok := c.Type(typeName); !ok {
			return &ImportError{Table: "qtoken_visibility", Message: fmt.Sprintf("unknown type %q", typeName)}
		}
		if err := c.Restrict(typeName, predicate); err != nil {
			return fmt.Errorf("import visibility: %w", err)
		}
	}
	return rows.Err()
}

func (s *Store) readFormats(ctx context.Context, c *schema.Catalog) error {
	rows, err := s.db.QueryContext(ctx, `SELECT route, format, unit FROM qtoken_format ORDER BY route`)
	if err != nil {
		return fmt.Errorf("query formats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var route, format, unit string
		if err := rows.Scan(&route, &format, &unit); err != nil {
			return fmt.Errorf("scan format: %w", err)
		}
		r, err := parseRoute(c, route)
		if err != nil {
			return err
		}
		if err := c.SetFormat(r, format, unit); err != nil {
			return fmt.Errorf("import format: %w", err)
		}
	}
	return rows.Err()
}

// parseRoute parses "Order.Lines/Price" against the catalog.
func parseRoute(c *schema.Catalog, text string) (ir.PropertyRoute, error) {
	fail := func(msg string) (ir.PropertyRoute, error) {
		return ir.PropertyRoute{}, &ImportError{Table: "qtoken_format", Message: fmt.Sprintf("route %q: %s", text, msg)}
	}
	rootName, rest, ok := strings.Cut(text, ".")
	if !ok || rest == "" {
		return fail("expected Type.Property")
	}
	root, ok := c.Type(rootName)
	if !ok {
		return fail("unknown type " + rootName)
	}
	route := ir.NewRoute(root)
	for i, seg := range strings.Split(rest, "/") {
		if i > 0 {
			route = route.Add("/")
		}
		for _, step := range strings.Split(seg, ".") {
			route = route.Add(step)
		}
	}
	if _, ok := c.PropertyInfo(route.Root, route.Path...); !ok {
		return fail("no such property")
	}
	return route, nil
}

type importer struct {
	catalog *schema.Catalog
	tables  []*table
	types   map[string]*ir.Type // by table name
	props   map[string][]*schema.Property
}

// typeName maps a table name to a type name: "order_lines" → "OrderLine".
func typeName(tableName string) string {
	return inflect.Camelize(inflect.Singularize(tableName))
}

func (im *importer) build() error {
	byName := make(map[string]*table, len(im.tables))
	for _, t := range im.tables {
		byName[t.name] = t
		if _, ok := t.parent(); ok {
			im.types[t.name] = ir.Embedded(typeName(t.name))
		} else {
			im.types[t.name] = ir.Entity(typeName(t.name))
		}
	}

	for _, t := range im.tables {
		props, err := im.columns(t)
		if err != nil {
			return err
		}
		im.props[t.name] = append(im.props[t.name], props...)
	}

	for _, t := range im.tables {
		parentName, ok := t.parent()
		if !ok {
			continue
		}
		parent, ok := byName[parentName]
		if !ok || !im.types[parentName].IsEntity() {
			return &ImportError{Table: t.name, Message: fmt.Sprintf("parent %s is not an entity table", parentName)}
		}
		im.props[parent.name] = append(im.props[parent.name], im.mlist(t, parent))
	}

	for _, t := range im.tables {
		if _, ok := t.parent(); ok {
			continue
		}
		for _, c := range t.columns {
			if c.ref == "" || !im.types[c.ref].IsEntity() {
				continue
			}
			im.backReference(t, c.ref)
		}
	}

	for _, t := range im.tables {
		typ := im.types[t.name]
		if _, ok := t.parent(); ok && len(im.valueColumns(t)) == 1 && im.valueColumns(t)[0].ref == "" {
			continue // list of scalars, no element type
		}
		if err := im.catalog.Define(typ, im.props[t.name]...); err != nil {
			return &ImportError{Table: t.name, Message: err.Error()}
		}
	}
	return nil
}

// valueColumns returns the columns of an MList table that hold element
// values.
func (im *importer) valueColumns(t *table) []column {
	var out []column
	for _, c := range t.columns {
		switch c.name {
		case idColumn, parentColumn, rowOrderColumn:
			continue
		}
		out = append(out, c)
	}
	return out
}

func (im *importer) columns(t *table) ([]*schema.Property, error) {
	_, isList := t.parent()
	var out []*schema.Property
	for _, c := range t.columns {
		if isList {
			switch c.name {
			case idColumn, parentColumn, rowOrderColumn:
				continue
			}
		}
		p, err := im.property(t, c)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (im *importer) property(t *table, c column) (*schema.Property, error) {
	if c.ref != "" {
		target, ok := im.types[c.ref]
		if !ok || !target.IsEntity() {
			return nil, &ImportError{Table: t.name, Message: fmt.Sprintf("column %s references %s, which is not an entity table", c.name, c.ref)}
		}
		name := inflect.Camelize(strings.TrimSuffix(c.name, "_id"))
		return &schema.Property{Name: name, Type: ir.LiteOf(target)}, nil
	}
	typ, ok := affinity(c.declType)
	if !ok {
		return nil, &ImportError{Table: t.name, Message: fmt.Sprintf("column %s has unsupported type %q", c.name, c.declType)}
	}
	return &schema.Property{Name: inflect.Camelize(c.name), Type: typ}, nil
}

// mlist builds the collection property of parent for MList table t.
func (im *importer) mlist(t, parent *table) *schema.Property {
	name := strings.TrimPrefix(t.name, inflect.Singularize(parent.name)+"_")
	elem := im.types[t.name]
	if values := im.valueColumns(t); len(values) == 1 && values[0].ref == "" {
		elem, _ = affinity(values[0].declType)
	}
	_, ordered := t.column(rowOrderColumn)
	return &schema.Property{
		Name:          inflect.Camelize(name),
		Type:          ir.CollectionOf(elem),
		MList:         true,
		PreserveOrder: ordered,
	}
}

// backReference offers the rows of child referencing parent as a
// queryable on parent, unless the name is taken.
func (im *importer) backReference(child *table, parent string) {
	name := inflect.Camelize(child.name)
	for _, p := range im.props[parent] {
		if p.Name == name {
			return
		}
	}
	im.props[parent] = append(im.props[parent], &schema.Property{
		Name: name,
		Type: ir.QueryableOf(im.types[child.name]),
	})
}

// affinity maps a declared SQLite column type onto a scalar, following
// SQLite's substring rules with a few common extensions.
func affinity(declType string) (*ir.Type, bool) {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "BOOL"):
		return ir.Bool, true
	case strings.Contains(t, "UUID"), strings.Contains(t, "GUID"):
		return ir.Guid, true
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return ir.DateTime, true
	case strings.Contains(t, "INT"):
		return ir.Int, true
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return ir.String, true
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"), strings.Contains(t, "MONEY"):
		return ir.Decimal, true
	default:
		return nil, false
	}
}
