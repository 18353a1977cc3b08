package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/tx"
	"sheetstock/pkg/logger"
)

var tracer = otel.Tracer("sheetstock/storage/postgres")

// Compile-time check that TxManager implements tx.Beginner.
var _ tx.Beginner = (*TxManager)(nil)

// TxOptions configures transaction behavior.
type TxOptions struct {
	// IsolationLevel: pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted
	IsolationLevel pgx.TxIsoLevel

	// AccessMode: pgx.ReadWrite, pgx.ReadOnly
	AccessMode pgx.TxAccessMode

	// StatementTimeout protects against long-running queries (default 30s)
	StatementTimeout time.Duration
}

// DefaultTxOptions returns production-safe defaults. Row locks (FOR UPDATE
// on batches and parties) give the isolation the domain needs.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// TxManager manages database transactions with support for:
// - Nested calls joining the outer transaction
// - Explicit units of work (Begin)
// - Statement timeout protection
// - Distributed tracing integration
type TxManager struct {
	pool *pgxpool.Pool
	opts TxOptions
}

// NewTxManager creates a new transaction manager.
func NewTxManager(pool *Pool, statementTimeout time.Duration) *TxManager {
	opts := DefaultTxOptions()
	if statementTimeout > 0 {
		opts.StatementTimeout = statementTimeout
	}
	return &TxManager{pool: pool.Pool, opts: opts}
}

// txKey is the context key for active transaction.
type txKey struct{}

// Tx wraps pgx.Tx with metadata.
type Tx struct {
	pgx.Tx
}

// RunInTransaction executes fn within a transaction.
// If a transaction already exists in ctx, fn joins it and the outer caller
// decides commit or rollback.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, m.opts, fn)
}

// RunInTransactionWithOptions executes fn with custom transaction options.
func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}
	return tx.RunInUnit(ctx, beginner{m: m, opts: opts}, fn)
}

// Begin opens an explicit unit of work. A nested Begin joins the outer
// transaction and its unit does nothing.
func (m *TxManager) Begin(ctx context.Context) (context.Context, tx.Unit, error) {
	return m.begin(ctx, m.opts)
}

func (m *TxManager) begin(ctx context.Context, opts TxOptions) (context.Context, tx.Unit, error) {
	if m.GetTx(ctx) != nil {
		return ctx, joinedUnit{}, nil
	}

	ctx, span := tracer.Start(ctx, "postgres.Transaction",
		trace.WithAttributes(
			attribute.String("tx.isolation", string(opts.IsolationLevel)),
		))

	pgTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   opts.IsolationLevel,
		AccessMode: opts.AccessMode,
	})
	if err != nil {
		span.End()
		return ctx, nil, apperror.NewPersistence(fmt.Errorf("begin transaction: %w", err))
	}

	// Set statement timeout for protection against runaway queries
	if opts.StatementTimeout > 0 {
		_, err = pgTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds()))
		if err != nil {
			_ = pgTx.Rollback(ctx)
			span.End()
			return ctx, nil, apperror.NewPersistence(fmt.Errorf("set statement_timeout: %w", err))
		}
	}

	txCtx := context.WithValue(ctx, txKey{}, &Tx{Tx: pgTx})
	return txCtx, &unit{tx: pgTx, span: span}, nil
}

type beginner struct {
	m    *TxManager
	opts TxOptions
}

func (b beginner) Begin(ctx context.Context) (context.Context, tx.Unit, error) {
	return b.m.begin(ctx, b.opts)
}

func (b beginner) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.m.RunInTransactionWithOptions(ctx, b.opts, fn)
}

type unit struct {
	tx   pgx.Tx
	span trace.Span
	done bool
}

func (u *unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.span.End()
	if err := u.tx.Commit(ctx); err != nil {
		return apperror.NewPersistence(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Rollback uses a background context so it completes even when the
// request context was cancelled.
func (u *unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.span.End()
	if err := u.tx.Rollback(context.Background()); err != nil {
		logger.Error(ctx, "rollback failed", "error", err)
		return err
	}
	return nil
}

type joinedUnit struct{}

func (joinedUnit) Commit(context.Context) error   { return nil }
func (joinedUnit) Rollback(context.Context) error { return nil }

// GetTx returns the current transaction from context, or nil if none.
func (m *TxManager) GetTx(ctx context.Context) *Tx {
	if tx, ok := ctx.Value(txKey{}).(*Tx); ok {
		return tx
	}
	return nil
}

// Querier is satisfied by both pgx.Tx and the pool, so repos work inside
// and outside transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns appropriate querier for context.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if tx := m.GetTx(ctx); tx != nil {
		return tx.Tx
	}
	return m.pool
}

// ReadOnly executes fn in a read-only transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := m.opts
	opts.AccessMode = pgx.ReadOnly
	return m.RunInTransactionWithOptions(ctx, opts, fn)
}
