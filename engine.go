// Package advisor implements a generic relational persistence engine that
// maps hierarchies of entity types onto normalized tables. It batches
// insert-or-update and delete statements per hierarchy level inside one
// transaction, propagates database-generated identifiers from parent
// levels to dependent child levels, and materializes joined rows back
// into typed entities.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/janiece-23/BetterAdvisor/dialect"
	esql "github.com/janiece-23/BetterAdvisor/dialect/sql"
	"github.com/janiece-23/BetterAdvisor/schema"
)

// Engine executes batched writes and hierarchy-joined reads for
// registered entity types. Every operation acquires its own pooled
// connection and blocks until the round trip completes; concurrent calls
// are coordinated only by the database itself.
type Engine struct {
	drv      dialect.Driver
	log      *slog.Logger
	cache    Cache
	cacheTTL time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for non-fatal engine events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithCache enables caching of fetch results with the given TTL. Cached
// entries for a table hierarchy are invalidated by upserts and deletes
// going through the same engine.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(e *Engine) { e.cache, e.cacheTTL = c, ttl }
}

// New returns an Engine on top of the given driver.
func New(drv dialect.Driver, opts ...Option) *Engine {
	e := &Engine{drv: drv, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open opens a pooled database connection and returns an Engine for it.
// The driver named by driverName must be registered with database/sql.
func Open(driverName, dsn string, opts ...Option) (*Engine, error) {
	drv, err := esql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("advisor: opening %s: %w", driverName, err)
	}
	return New(drv, opts...), nil
}

// Driver returns the underlying dialect driver.
func (e *Engine) Driver() dialect.Driver { return e.drv }

// Close closes the underlying connection pool.
func (e *Engine) Close() error { return e.drv.Close() }

// upsertPlan is the resolved write plan for one hierarchy level. write is
// the parameter-binding order; the statement in query was generated from
// the same slice and must never be rebuilt independently.
type upsertPlan struct {
	level *schema.Type
	write []*schema.Column
	auto  *schema.Column // local generated column, receives keys after the batch
	query string
}

// Upsert inserts or updates a single entity across its table hierarchy.
func (e *Engine) Upsert(ctx context.Context, item schema.Entity) error {
	if item == nil {
		return nil
	}
	return e.UpsertAll(ctx, []schema.Entity{item})
}

// UpsertAll inserts or updates all items inside one transaction, one
// batched statement per hierarchy level from root to leaf. After a
// level's batch, keys generated by the database are assigned to items
// that lack them, so deeper levels bind the inherited key. Any failure
// rolls back every level for every item.
func (e *Engine) UpsertAll(ctx context.Context, items []schema.Entity) error {
	if len(items) == 0 {
		return nil
	}
	typ := items[0].Type()
	hier := typ.Hierarchy()
	if len(hier) == 0 {
		return schema.NewSchemaError(typ.Name, "type is not mapped to a table")
	}
	plans, err := e.upsertPlans(hier)
	if err != nil {
		return err
	}
	op := "upsert " + typ.Name
	tx, err := e.drv.Tx(ctx)
	if err != nil {
		return NewStatementError(op, err)
	}
	if err := e.runUpsert(ctx, tx, plans, items); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return NewStatementError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return NewStatementError(op, err)
	}
	e.invalidate(ctx, hier)
	return nil
}

// upsertPlans resolves metadata and builds statements for every level
// before the transaction begins, so schema problems abort the operation
// without touching the database.
func (e *Engine) upsertPlans(hier []*schema.Type) ([]upsertPlan, error) {
	d := e.drv.Dialect()
	plans := make([]upsertPlan, 0, len(hier))
	for _, level := range hier {
		if len(level.LocalColumns()) == 0 {
			continue
		}
		write, err := level.UpsertColumns()
		if err != nil {
			return nil, err
		}
		b := esql.Upsert(level.Table).
			Dialect(d).
			Columns(columnNames(write)...).
			Keys(columnNames(schema.Identifiers(write))...)
		auto := schema.AutoColumn(level.LocalColumns())
		if auto != nil {
			// Postgres and SQLite hand the key back through RETURNING,
			// which yields the existing row's key on the update path.
			// MySQL reports it on the result, routed through
			// LAST_INSERT_ID for updates.
			b.Returning(auto.Name)
		}
		q, err := b.Query()
		if err != nil {
			return nil, schema.NewSchemaError(level.Name, "building upsert: %v", err)
		}
		plans = append(plans, upsertPlan{level: level, write: write, auto: auto, query: q})
	}
	return plans, nil
}

func (e *Engine) runUpsert(ctx context.Context, tx dialect.Tx, plans []upsertPlan, items []schema.Entity) error {
	d := e.drv.Dialect()
	returning := d == dialect.Postgres || d == dialect.SQLite
	for _, p := range plans {
		keys := make([]any, len(items))
		for i, item := range items {
			args, err := bindArgs(item, p.write)
			if err != nil {
				return err
			}
			switch {
			case p.auto != nil && returning:
				key, err := execReturning(ctx, tx, p.query, args)
				if err != nil {
					return err
				}
				keys[i] = key
			default:
				var res esql.Result
				if err := tx.Exec(ctx, p.query, args, &res); err != nil {
					return err
				}
				if p.auto != nil {
					if id, err := res.LastInsertId(); err == nil {
						keys[i] = id
					}
				}
			}
		}
		if p.auto == nil {
			continue
		}
		// Hand generated keys to the items before the next level binds,
		// consumed in submission order.
		for i, item := range items {
			cur, err := item.Value(p.auto.Name)
			if err != nil {
				return schema.NewSchemaError(p.level.Name, "reading column %q: %v", p.auto.Name, err)
			}
			if !absent(cur) || keys[i] == nil {
				continue
			}
			if err := item.SetValue(p.auto.Name, keys[i]); err != nil {
				return schema.NewSchemaError(p.level.Name, "assigning generated key to %q: %v", p.auto.Name, err)
			}
		}
	}
	return nil
}

// execReturning runs an upsert carrying a RETURNING clause and reads the
// generated key back.
func execReturning(ctx context.Context, tx dialect.Tx, query string, args []any) (any, error) {
	var rows esql.Rows
	if err := tx.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	var key any
	if rows.Next() {
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
	}
	return key, rows.Err()
}

// Delete removes a single entity across its table hierarchy.
func (e *Engine) Delete(ctx context.Context, item schema.Entity) error {
	if item == nil {
		return nil
	}
	return e.DeleteAll(ctx, []schema.Entity{item})
}

// DeleteAll removes all items inside one transaction, one level at a
// time from leaf to root, so child rows disappear before the parent rows
// they reference. Every level matches on the leaf type's primary
// identifier; an item without an identifier value is skipped without
// aborting the batch.
func (e *Engine) DeleteAll(ctx context.Context, items []schema.Entity) error {
	if len(items) == 0 {
		return nil
	}
	typ := items[0].Type()
	hier := typ.Hierarchy()
	if len(hier) == 0 {
		return schema.NewSchemaError(typ.Name, "type is not mapped to a table")
	}
	pid, err := typ.PrimaryIdentifier()
	if err != nil {
		return err
	}
	op := "delete " + typ.Name
	d := e.drv.Dialect()
	tx, err := e.drv.Tx(ctx)
	if err != nil {
		return NewStatementError(op, err)
	}
	if err := runDelete(ctx, tx, d, hier, pid, items); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return NewStatementError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return NewStatementError(op, err)
	}
	e.invalidate(ctx, hier)
	return nil
}

func runDelete(ctx context.Context, tx dialect.Tx, d string, hier []*schema.Type, pid *schema.Column, items []schema.Entity) error {
	for i := len(hier) - 1; i >= 0; i-- {
		level := hier[i]
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", level.Table, pid.Name, esql.Placeholder(d, 1))
		for _, item := range items {
			v, err := item.Value(pid.Name)
			if err != nil {
				return schema.NewSchemaError(level.Name, "reading column %q: %v", pid.Name, err)
			}
			if absent(v) {
				continue
			}
			if err := tx.Exec(ctx, query, []any{v}, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// FetchOne returns the entity whose column equals value, joining every
// ancestor table of the type's hierarchy. It returns (nil, nil) when no
// row matches.
func (e *Engine) FetchOne(ctx context.Context, typ *schema.Type, column string, value any) (schema.Entity, error) {
	out, err := e.fetchFiltered(ctx, typ, "one", column, value, true)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// FetchMany returns every entity whose column equals value, typically a
// foreign-key lookup.
func (e *Engine) FetchMany(ctx context.Context, typ *schema.Type, column string, value any) ([]schema.Entity, error) {
	return e.fetchFiltered(ctx, typ, "many", column, value, false)
}

func (e *Engine) fetchFiltered(ctx context.Context, typ *schema.Type, op, column string, value any, single bool) ([]schema.Entity, error) {
	if !esql.ValidColumn(column) {
		return nil, schema.NewSchemaError(typ.Name, "invalid filter column %q", column)
	}
	from, hier, err := e.joinedFrom(typ)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE t.%s = %s", from, column, esql.Placeholder(e.drv.Dialect(), 1))
	if single {
		query += " LIMIT 1"
	}
	key := fetchKey(hier[len(hier)-1].Table, op, column, value)
	return e.fetchRows(ctx, typ, key, query, []any{value})
}

// FetchManyToMany returns the entities of typ related to sourceID through
// joinTable: rows whose joinColumn equals sourceID select related rows by
// inverseJoinColumn, which carries the target's primary identifier.
func (e *Engine) FetchManyToMany(ctx context.Context, typ *schema.Type, joinTable, joinColumn, inverseJoinColumn string, sourceID any) ([]schema.Entity, error) {
	if !esql.ValidColumn(joinColumn) {
		return nil, schema.NewSchemaError(typ.Name, "invalid join column %q", joinColumn)
	}
	from, hier, err := e.joinedFrom(typ)
	if err != nil {
		return nil, err
	}
	pid, err := typ.PrimaryIdentifier()
	if err != nil {
		return nil, err
	}
	from, err = esql.ManyToManyFrom(from, joinTable, pid.Name, inverseJoinColumn)
	if err != nil {
		return nil, schema.NewSchemaError(typ.Name, "building join: %v", err)
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE j.%s = %s", from, joinColumn, esql.Placeholder(e.drv.Dialect(), 1))
	key := fetchKey(hier[len(hier)-1].Table, "m2m "+joinTable, joinColumn, sourceID)
	return e.fetchRows(ctx, typ, key, query, []any{sourceID})
}

// joinedFrom builds the FROM clause joining the full hierarchy of typ,
// with the leaf aliased "t".
func (e *Engine) joinedFrom(typ *schema.Type) (string, []*schema.Type, error) {
	hier := typ.Hierarchy()
	if len(hier) == 0 {
		return "", nil, schema.NewSchemaError(typ.Name, "type is not mapped to a table")
	}
	leafID, err := typ.PrimaryIdentifier()
	if err != nil {
		return "", nil, err
	}
	ancestors := make([]esql.Ancestor, 0, len(hier)-1)
	for _, a := range hier[:len(hier)-1] {
		pid, err := a.PrimaryIdentifier()
		if err != nil {
			return "", nil, err
		}
		ancestors = append(ancestors, esql.Ancestor{Table: a.Table, ID: pid.Name})
	}
	leaf := hier[len(hier)-1]
	from, err := esql.JoinedFrom(leaf.Table, leafID.Name, ancestors)
	if err != nil {
		return "", nil, schema.NewSchemaError(typ.Name, "building from clause: %v", err)
	}
	return from, hier, nil
}

// fetchRows queries, scans and materializes rows for typ, going through
// the cache when one is configured.
func (e *Engine) fetchRows(ctx context.Context, typ *schema.Type, key, query string, args []any) ([]schema.Entity, error) {
	if typ.New == nil {
		return nil, schema.NewSchemaError(typ.Name, "no entity factory bound")
	}
	if e.cache != nil {
		if vals, ok := e.cacheGet(ctx, key); ok {
			return materializeAll(typ, vals)
		}
	}
	var rows esql.Rows
	if err := e.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("advisor: querying %s: %w", typ.Name, err)
	}
	defer rows.Close()
	vals, err := scanValues(&rows)
	if err != nil {
		return nil, fmt.Errorf("advisor: querying %s: %w", typ.Name, err)
	}
	if e.cache != nil {
		e.cacheSet(ctx, key, vals)
	}
	return materializeAll(typ, vals)
}

// Exec executes a raw parameterized statement and returns the number of
// affected rows.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	var res esql.Result
	if err := e.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, fmt.Errorf("advisor: exec: %w", err)
	}
	return res.RowsAffected()
}

// ExecInsert executes a raw insert and returns the generated key. It
// requires a driver reporting LastInsertId (MySQL, SQLite).
func (e *Engine) ExecInsert(ctx context.Context, query string, args ...any) (int64, error) {
	var res esql.Result
	if err := e.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, fmt.Errorf("advisor: exec insert: %w", err)
	}
	return res.LastInsertId()
}

// Query executes a raw parameterized query and hands the rows to fn.
// The rows are closed when fn returns.
func (e *Engine) Query(ctx context.Context, query string, args []any, fn func(*esql.Rows) error) error {
	var rows esql.Rows
	if err := e.drv.Query(ctx, query, args, &rows); err != nil {
		return fmt.Errorf("advisor: query: %w", err)
	}
	defer rows.Close()
	return fn(&rows)
}

// bindArgs reads one parameter row from item in the exact order of cols.
// An absent nullable foreign key is bound as NULL.
func bindArgs(item schema.Entity, cols []*schema.Column) ([]any, error) {
	args := make([]any, len(cols))
	for i, c := range cols {
		v, err := item.Value(c.Name)
		if err != nil {
			return nil, schema.NewSchemaError(item.Type().Name, "reading column %q: %v", c.Name, err)
		}
		if c.NullableRef && absent(v) {
			args[i] = nil
			continue
		}
		args[i] = v
	}
	return args, nil
}

// absent reports whether v is the "no value" sentinel: nil, a numeric
// zero or an empty string.
func absent(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case int:
		return x == 0
	case int8:
		return x == 0
	case int16:
		return x == 0
	case int32:
		return x == 0
	case int64:
		return x == 0
	case uint:
		return x == 0
	case uint8:
		return x == 0
	case uint16:
		return x == 0
	case uint32:
		return x == 0
	case uint64:
		return x == 0
	case string:
		return x == ""
	}
	return false
}

func columnNames(cols []*schema.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
