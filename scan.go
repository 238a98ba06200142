package advisor

import (
	"fmt"
	"time"

	esql "github.com/janiece-23/BetterAdvisor/dialect/sql"
	"github.com/janiece-23/BetterAdvisor/schema"
)

// scanValues drains rows into column-name keyed maps. Joined hierarchies
// repeat column names across levels; the first occurrence wins, matching
// lookup-by-label semantics.
func scanValues(rows *esql.Rows) ([]map[string]any, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		dest := make([]any, len(names))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		values := make(map[string]any, len(names))
		for i, name := range names {
			if _, ok := values[name]; ok {
				continue
			}
			values[name] = *(dest[i].(*any))
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

// materializeAll converts scanned rows into typed entities. A row that
// fails to materialize stops the conversion; entities converted before it
// stay valid and are returned alongside the error.
func materializeAll(typ *schema.Type, vals []map[string]any) ([]schema.Entity, error) {
	out := make([]schema.Entity, 0, len(vals))
	for _, values := range vals {
		item, err := materialize(typ, values)
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

// materialize converts one scanned row into an entity of typ. Mapped
// columns absent from the result keep the field's default value, so
// partial projections materialize cleanly.
func materialize(typ *schema.Type, values map[string]any) (schema.Entity, error) {
	item := typ.New()
	for _, c := range typ.AllColumns() {
		v, ok := values[c.Name]
		if !ok || v == nil {
			continue
		}
		v, err := coerce(c.Kind, v)
		if err != nil {
			return nil, NewMappingError(typ.Name, err)
		}
		if err := item.SetValue(c.Name, v); err != nil {
			return nil, NewMappingError(typ.Name, err)
		}
	}
	return item, nil
}

// coerce converts database temporal representations into time.Time for
// columns declared with a time or date kind. Other kinds pass through
// unchanged.
func coerce(k schema.Kind, v any) (any, error) {
	if k == schema.KindAny {
		return v, nil
	}
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case int64:
		return time.Unix(x, 0).UTC(), nil
	case []byte:
		return parseTemporal(k, string(x))
	case string:
		return parseTemporal(k, x)
	}
	return nil, fmt.Errorf("cannot coerce %T into a time value", v)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTemporal(k schema.Kind, s string) (any, error) {
	if k == schema.KindDate {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, nil
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time value %q", s)
}
