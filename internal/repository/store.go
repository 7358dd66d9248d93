package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

type txKey struct{}

// Store runs transactions on behalf of the repositories sharing its database
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a transaction runner for db
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// WithinTx implements domain.Transactor. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", slog.String("error", rbErr.Error()))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// conn returns the transaction bound to ctx, or db outside a transaction
func conn(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

func get(ctx context.Context, db *sqlx.DB, dest any, query string, args ...any) error {
	q := conn(ctx, db)
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

func selectAll(ctx context.Context, db *sqlx.DB, dest any, query string, args ...any) error {
	q := conn(ctx, db)
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

// exec runs a statement and returns the number of affected rows
func exec(ctx context.Context, db *sqlx.DB, query string, args ...any) (int64, error) {
	q := conn(ctx, db)
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n, nil
}

// notFound maps sql.ErrNoRows to domain.ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// SQLite reports constraint failures only through the message
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// wrapGet leaves not-found errors untouched and adds context to the rest
func wrapGet(err error, what string) error {
	if isNotFound(err) {
		return err
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
