package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/janiece-23/BetterAdvisor/dialect"
)

// ValidColumn reports whether s is safe to embed as a column or table
// identifier in statement text.
func ValidColumn(s string) bool { return isValidIdentifier(s) }

// Placeholder returns the positional parameter placeholder for the given
// dialect. n is 1-based.
func Placeholder(d string, n int) string {
	if d == dialect.Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// UpsertBuilder builds an insert-or-update statement for a single table.
//
// The column list and the value placeholders are generated in one pass over
// the same ordered slice. Callers bind parameters in that same order; the
// builder never reorders columns.
type UpsertBuilder struct {
	dialect   string
	table     string
	columns   []string
	keys      []string
	returning string
}

// Upsert returns a builder for an insert-or-update statement on table.
func Upsert(table string) *UpsertBuilder {
	return &UpsertBuilder{table: table}
}

// Dialect sets the dialect that selects the conflict syntax.
func (b *UpsertBuilder) Dialect(name string) *UpsertBuilder {
	b.dialect = name
	return b
}

// Columns sets the ordered list of columns to write.
func (b *UpsertBuilder) Columns(columns ...string) *UpsertBuilder {
	b.columns = columns
	return b
}

// Keys sets the match columns that identify an existing row. On MySQL the
// match is implied by the table's unique indexes and the keys only select
// which columns are excluded from the update list.
func (b *UpsertBuilder) Keys(keys ...string) *UpsertBuilder {
	b.keys = keys
	return b
}

// Returning requests the given column back from the database after the
// write, whether the statement inserted or updated. On MySQL no RETURNING
// clause exists; the column is instead routed through LAST_INSERT_ID in
// the update list, so the driver reports the existing row's key on the
// update path.
func (b *UpsertBuilder) Returning(column string) *UpsertBuilder {
	b.returning = column
	return b
}

// Query returns the statement text. Parameters are positional and must be
// bound in the exact order given to Columns.
func (b *UpsertBuilder) Query() (string, error) {
	if !isValidIdentifier(b.table) {
		return "", fmt.Errorf("dialect/sql: invalid table name %q", b.table)
	}
	if len(b.columns) == 0 {
		return "", fmt.Errorf("dialect/sql: upsert into %s: no columns", b.table)
	}
	for _, c := range append(append([]string{}, b.columns...), b.keys...) {
		if !isValidIdentifier(c) {
			return "", fmt.Errorf("dialect/sql: invalid column name %q", c)
		}
	}
	if b.returning != "" && !isValidIdentifier(b.returning) {
		return "", fmt.Errorf("dialect/sql: invalid column name %q", b.returning)
	}
	var cols, vals strings.Builder
	for i, c := range b.columns {
		if i > 0 {
			cols.WriteString(", ")
			vals.WriteString(", ")
		}
		cols.WriteString(c)
		vals.WriteString(Placeholder(b.dialect, i+1))
	}
	var q strings.Builder
	fmt.Fprintf(&q, "INSERT INTO %s (%s) VALUES (%s)", b.table, cols.String(), vals.String())
	update := b.updateColumns()
	switch {
	case b.dialect == dialect.MySQL:
		assigns := make([]string, 0, len(update)+1)
		if b.returning != "" {
			// LAST_INSERT_ID(col) makes the driver report the existing
			// row's key when the statement takes the update path.
			assigns = append(assigns, fmt.Sprintf("%s = LAST_INSERT_ID(%s)", b.returning, b.returning))
		}
		for _, c := range update {
			// VALUES() is deprecated by MySQL 8.0.20 in favor of row
			// aliases; the alias form is not understood by MariaDB.
			assigns = append(assigns, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
		if len(assigns) == 0 {
			// No-op assignment keeps the statement an upsert without
			// changing any column on conflict.
			assigns = append(assigns, b.columns[0]+" = "+b.columns[0])
		}
		fmt.Fprintf(&q, " ON DUPLICATE KEY UPDATE %s", strings.Join(assigns, ", "))
	case len(b.keys) > 0:
		fmt.Fprintf(&q, " ON CONFLICT (%s)", strings.Join(b.keys, ", "))
		if len(update) == 0 {
			q.WriteString(" DO NOTHING")
			break
		}
		q.WriteString(" DO UPDATE SET ")
		for i, c := range update {
			if i > 0 {
				q.WriteString(", ")
			}
			fmt.Fprintf(&q, "%s = excluded.%s", c, c)
		}
	}
	if b.returning != "" && b.dialect != dialect.MySQL {
		fmt.Fprintf(&q, " RETURNING %s", b.returning)
	}
	return q.String(), nil
}

// updateColumns returns the columns to rewrite on conflict: every written
// column that is not part of the match key.
func (b *UpsertBuilder) updateColumns() []string {
	keys := make(map[string]struct{}, len(b.keys))
	for _, k := range b.keys {
		keys[k] = struct{}{}
	}
	var update []string
	for _, c := range b.columns {
		if _, ok := keys[c]; !ok {
			update = append(update, c)
		}
	}
	return update
}

// Ancestor names one ancestor level of a table hierarchy for join building.
type Ancestor struct {
	Table string
	ID    string // primary identifier column of the ancestor
}

// JoinedFrom builds a FROM clause joining every ancestor table to the leaf
// table. The leaf is aliased "t" and ancestors "p0".."pN" from root to leaf.
// ancestors must be ordered root to leaf and exclude the leaf itself.
//
// Walking from the leaf backward, each step equates the current alias's
// identifier with the next ancestor's primary identifier, then advances the
// current alias and identifier to that ancestor. Sub-tables share the
// parent's key value, so the chain stays rooted at the leaf:
//
//	students t JOIN users p0 ON t.id = p0.id
func JoinedFrom(leafTable, leafID string, ancestors []Ancestor) (string, error) {
	if !isValidIdentifier(leafTable) {
		return "", fmt.Errorf("dialect/sql: invalid table name %q", leafTable)
	}
	if !isValidIdentifier(leafID) {
		return "", fmt.Errorf("dialect/sql: invalid column name %q", leafID)
	}
	var from strings.Builder
	fmt.Fprintf(&from, "%s t", leafTable)
	alias, id := "t", leafID
	for i := len(ancestors) - 1; i >= 0; i-- {
		a := ancestors[i]
		if !isValidIdentifier(a.Table) {
			return "", fmt.Errorf("dialect/sql: invalid table name %q", a.Table)
		}
		if !isValidIdentifier(a.ID) {
			return "", fmt.Errorf("dialect/sql: invalid column name %q", a.ID)
		}
		next := "p" + strconv.Itoa(i)
		fmt.Fprintf(&from, " JOIN %s %s ON %s.%s = %s.%s", a.Table, next, alias, id, next, a.ID)
		alias, id = next, a.ID
	}
	return from.String(), nil
}

// ManyToManyFrom extends a joined FROM clause with a join table aliased "j",
// matching the leaf's identifier against the join table's inverse column.
// The owning side's filter (j.<joinColumn> = ?) is appended by the caller.
func ManyToManyFrom(from, joinTable, leafID, inverseJoinColumn string) (string, error) {
	for _, id := range []string{joinTable, leafID, inverseJoinColumn} {
		if !isValidIdentifier(id) {
			return "", fmt.Errorf("dialect/sql: invalid identifier %q", id)
		}
	}
	return fmt.Sprintf("%s JOIN %s j ON t.%s = j.%s", from, joinTable, leafID, inverseJoinColumn), nil
}
