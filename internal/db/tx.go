package db

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transactor runs fn inside a single transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type txState struct {
	tx    *sql.Tx
	hooks []func()
}

type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx begins a transaction, hands it to fn through ctx and commits when
// fn returns nil. Any error or panic rolls back. A ctx that already carries a
// transaction is reused as is, so only the outermost call commits.
//
// Hooks registered with AfterCommit run once the outermost commit succeeds.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	// Client disconnects must not abort a command halfway.
	ctx = context.WithoutCancel(ctx)
	log := logger.FromCtx(ctx).With(zap.String("layer", "tx"))

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	state := &txState{tx: tx}
	committed := false

	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			log.Error("rollback failed", zap.Error(rbErr))
		}
		if p := recover(); p != nil {
			log.Error("panic inside transaction, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, state)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true

	for _, hook := range state.hooks {
		hook()
	}
	return nil
}

// Conn returns the transaction carried by ctx, or fallback when there is none.
func Conn(ctx context.Context, fallback *sql.DB) DBTX {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return state.tx
	}
	return fallback
}

// AfterCommit defers hook until the surrounding transaction commits. Hooks
// of a rolled back transaction never run. Outside a transaction the hook runs
// immediately.
func AfterCommit(ctx context.Context, hook func()) {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		state.hooks = append(state.hooks, hook)
		return
	}
	hook()
}

// Savepoint runs fn so that its failure can be undone without aborting the
// surrounding transaction.
func Savepoint(ctx context.Context, name string, fn func() error) error {
	state, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		return fn()
	}

	if _, err := state.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}

	if err := fn(); err != nil {
		if _, rbErr := state.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint %s: %w", name, rbErr)
		}
		return err
	}

	_, err := state.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}
