package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
)

// ErrNoTransaction is returned by AfterCommit when ctx carries no transaction.
var ErrNoTransaction = errors.New("no transaction in context")

// CommitHook runs once after the transaction it was registered in committed.
type CommitHook = func(ctx context.Context)

type txKey struct{}

type txState struct {
	tx    pgx.Tx
	hooks []CommitHook
}

func txFromContext(ctx context.Context) *txState {
	state, _ := ctx.Value(txKey{}).(*txState)
	return state
}

// TxManager runs functions inside a transaction carried by the context.
// Repositories pick the transaction up automatically.
type TxManager struct {
	pool *pgxpool.Pool
}

var _ domain.TxManager = (*TxManager)(nil)

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx runs fn in a transaction. If ctx already carries one, fn joins it and
// the outermost call decides the outcome. Commit hooks run in registration
// order after a successful commit and are dropped on rollback.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	state := &txState{tx: tx}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, state)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range state.hooks {
		runHook(hookCtx, hook)
	}
	return nil
}

func runHook(ctx context.Context, hook CommitHook) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Commit hook panic recovered", "panic", r)
		}
	}()
	hook(ctx)
}

// AfterCommit is the method form of the package-level AfterCommit.
func (m *TxManager) AfterCommit(ctx context.Context, hook CommitHook) error {
	return AfterCommit(ctx, hook)
}

// AfterCommit registers hook on the transaction carried by ctx.
func AfterCommit(ctx context.Context, hook CommitHook) error {
	state := txFromContext(ctx)
	if state == nil {
		return ErrNoTransaction
	}
	state.hooks = append(state.hooks, hook)
	return nil
}
