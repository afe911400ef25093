package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is a transaction bound to a dialect.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

// Dialect returns the transaction's dialect.
func (t *Tx) Dialect() Dialect { return t.dialect }

// LockScope names a family of advisory locks.
type LockScope int64

// Lock scopes.
const (
	// ScopeCategories guards category id allocation.
	ScopeCategories LockScope = 1
	// ScopeCategory guards a single category subtree: its lists, their items
	// and the aggregate counts.
	ScopeCategory LockScope = 2
	// ScopeListNames guards list names, which are unique across categories.
	// Take it before any ScopeCategory lock.
	ScopeListNames LockScope = 3
)

// Lock takes a transaction-scoped lock on (scope, id). It is released at
// commit or rollback. On SQLite the transaction already holds the database
// write lock, so this is a no-op.
func (t *Tx) Lock(ctx context.Context, scope LockScope, id int64) error {
	if t.dialect != Postgres {
		return nil
	}
	key := int64(scope)<<40 | id
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return fmt.Errorf("locking scope %d/%d: %w", scope, id, err)
	}
	return nil
}

// InTx runs fn inside a transaction. The transaction commits if fn returns
// nil and rolls back otherwise.
func (d *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx, dialect: d.Dialect}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
