package pgstore

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Store implements marketplace.Store using a pgx connection pool (autocommit).
type Store struct {
	queries
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// TxStore implements marketplace.Store for an active transaction.
type TxStore struct {
	queries
	tx pgx.Tx
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets lock_timeout for every transaction. Zero leaves the server default.
func WithLockTimeout(timeout time.Duration) Option {
	return func(store *Store) {
		store.lockTimeout = timeout
	}
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool, options ...Option) *Store {
	store := &Store{queries: queries{db: pool}, pool: pool}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	return store
}

// EnsureSchema creates the marketplace tables when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeCreate, err)
	}
	return nil
}

// Ping reports whether the database answers.
func (store *Store) Ping(ctx context.Context) error {
	return store.pool.Ping(ctx)
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore marketplace.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, classifyError(err))
	}
	if store.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf(sqlSetLockTimeout, store.lockTimeout.Milliseconds())); err != nil {
			_ = tx.Rollback(ctx)
			return wrapStoreError(errorSubjectTransaction, errorCodeLockTimeout, err)
		}
	}
	transactionStore := &TxStore{queries: queries{db: tx}, tx: tx}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, classifyError(err))
	}
	return nil
}

// WithTx reuses the open transaction.
func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore marketplace.Store) error) error {
	return fn(ctx, store)
}
