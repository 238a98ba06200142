// Package schema holds the entity descriptors consumed by the persistence
// engine: tables, columns, identifier roles and the parent references that
// form table hierarchies. Descriptors are declared explicitly and resolved
// at runtime; there is no reflection and no generated code.
package schema

// Kind describes the value domain of a column, used by the engine to
// coerce database values during row materialization.
type Kind uint8

const (
	// KindAny passes database values through unchanged.
	KindAny Kind = iota
	// KindTime coerces timestamp values into time.Time.
	KindTime
	// KindDate coerces date-only values into time.Time.
	KindDate
)

// Column describes one persisted column declared locally on a type.
type Column struct {
	// Name is the persisted column name.
	Name string
	// Identifier marks the column as part of the upsert match key.
	Identifier bool
	// Primary marks the column as the primary identifier of the
	// hierarchy. Implies Identifier.
	Primary bool
	// Auto marks the column as database-generated on insert.
	Auto bool
	// OmitUpsert excludes the column from upsert statements. Typically
	// set together with Auto.
	OmitUpsert bool
	// NullableRef marks a foreign-key column whose absent or zero value
	// must be written as NULL.
	NullableRef bool
	// Kind selects value coercion during materialization.
	Kind Kind
}

// Col starts a column descriptor with the given persisted name.
func Col(name string) *Column { return &Column{Name: name} }

// AsIdentifier marks the column as part of the upsert match key.
func (c *Column) AsIdentifier() *Column { c.Identifier = true; return c }

// AsPrimary marks the column as the hierarchy's primary identifier.
func (c *Column) AsPrimary() *Column { c.Identifier, c.Primary = true, true; return c }

// AsAuto marks the column as database-generated.
func (c *Column) AsAuto() *Column { c.Auto = true; return c }

// SkipUpsert excludes the column from upsert statements.
func (c *Column) SkipUpsert() *Column { c.OmitUpsert = true; return c }

// AsNullableRef marks the column as a nullable foreign key.
func (c *Column) AsNullableRef() *Column { c.NullableRef = true; return c }

// AsTime sets timestamp coercion for the column.
func (c *Column) AsTime() *Column { c.Kind = KindTime; return c }

// AsDate sets date coercion for the column.
func (c *Column) AsDate() *Column { c.Kind = KindDate; return c }

// Entity is implemented by record types mapped to relational tables.
// Field access goes through persisted column names, so the engine needs
// no knowledge of the concrete struct layout.
type Entity interface {
	// Type returns the descriptor of the entity's type.
	Type() *Type
	// Value returns the current value of the field mapped to column.
	Value(column string) (any, error)
	// SetValue assigns a database value to the field mapped to column.
	SetValue(column string, v any) error
}

// Type describes one entity type and its place in a table hierarchy.
// The hierarchy is an explicit chain of Parent references; a Type with a
// nil Parent is the root of its hierarchy.
type Type struct {
	// Name is the entity type name, e.g. "Student".
	Name string
	// Table is the table the type maps to. Left empty, it is derived
	// from Name at registration.
	Table string
	// SubTable marks a type whose table extends the parent table and
	// carries the parent's primary identifier.
	SubTable bool
	// Embedded marks a type that declares no table of its own. Embedded
	// types terminate hierarchy walks and contribute no columns.
	Embedded bool
	// Parent is the ancestor type, or nil for a root.
	Parent *Type
	// Columns are the columns declared directly on this type.
	Columns []*Column
	// New constructs an empty entity of this type for materialization.
	New func() Entity

	// fallbackID is the compatibility default for the primary identifier
	// name, set by a Registry configured with WithFallbackIdentifier.
	fallbackID string
}

// Hierarchy returns the chain of types from the root ancestor to t,
// walking Parent references while each ancestor carries table metadata.
// A type without table metadata anywhere in its ancestry yields an empty
// hierarchy; callers treat that as "not persistable".
func (t *Type) Hierarchy() []*Type {
	var chain []*Type
	for cur := t; cur != nil && !cur.Embedded && cur.Table != ""; cur = cur.Parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// LocalColumns returns the columns declared directly on t.
func (t *Type) LocalColumns() []*Column { return t.Columns }

// AllColumns returns the local columns of every level in the hierarchy,
// ordered ancestor to leaf. The order matches a fully joined row.
func (t *Type) AllColumns() []*Column {
	var cols []*Column
	for _, level := range t.Hierarchy() {
		cols = append(cols, level.Columns...)
	}
	return cols
}

// PrimaryIdentifier returns the column across AllColumns marked as the
// primary identifier. Without one, it returns the registry's fallback
// identifier if configured, otherwise a SchemaError.
func (t *Type) PrimaryIdentifier() (*Column, error) {
	for _, c := range t.AllColumns() {
		if c.Identifier && c.Primary {
			return c, nil
		}
	}
	if t.fallbackID != "" {
		return &Column{Name: t.fallbackID, Identifier: true, Primary: true}, nil
	}
	return nil, NewSchemaError(t.Name, "no primary identifier column declared in hierarchy")
}

// UpsertColumns returns the local columns written by an upsert of this
// level: every local column not excluded from upserts, plus the resolved
// primary identifier when the type is a sub-table, so the child row
// carries the inherited key.
func (t *Type) UpsertColumns() ([]*Column, error) {
	cols := make([]*Column, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		if !c.OmitUpsert {
			cols = append(cols, c)
		}
	}
	if t.SubTable {
		pid, err := t.PrimaryIdentifier()
		if err != nil {
			return nil, err
		}
		cols = append(cols, pid)
	}
	return cols, nil
}

// Identifiers filters cols down to the identifier columns, preserving
// order.
func Identifiers(cols []*Column) []*Column {
	var ids []*Column
	for _, c := range cols {
		if c.Identifier {
			ids = append(ids, c)
		}
	}
	return ids
}

// AutoColumn returns the first database-generated column in cols, or nil.
func AutoColumn(cols []*Column) *Column {
	for _, c := range cols {
		if c.Auto {
			return c
		}
	}
	return nil
}
