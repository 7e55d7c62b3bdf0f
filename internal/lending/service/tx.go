package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	id "libris/pkg/domain"
	dErrors "libris/pkg/domain-errors"
	txcontext "libris/pkg/platform/tx"
)

// LendingTx is the transactional boundary for check-then-act lending
// mutations. The engine runs every borrow and return inside it, keyed
// by the book and borrower involved, so two requests touching the same
// book or the same borrower serialize while unrelated requests proceed.
type LendingTx interface {
	RunInTx(ctx context.Context, bookID id.BookID, borrowerID id.UserID, fn func(ctx context.Context) error) error
}

// Operations are distributed across N shards by a hash of the entity
// ID, reducing contention under concurrent load compared to one global
// lock.
const numLendingShards = 128

// defaultLendingTxTimeout bounds how long a lending transaction may
// hold its locks.
const defaultLendingTxTimeout = 5 * time.Second

// ShardedTx serializes lending mutations with sharded mutexes alone. It
// backs the in-memory stores; the Postgres deployment uses PostgresTx.
type ShardedTx struct {
	shards  [numLendingShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx() *ShardedTx {
	return &ShardedTx{}
}

func (t *ShardedTx) RunInTx(ctx context.Context, bookID id.BookID, borrowerID id.UserID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLendingTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	unlock := t.lock(bookID, borrowerID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

// lock acquires the shards for the book and the borrower in index
// order, so two transactions touching the same pair can never deadlock
// against each other.
func (t *ShardedTx) lock(bookID id.BookID, borrowerID id.UserID) func() {
	first := shardFor(bookID.String())
	second := shardFor(borrowerID.String())
	if first == second {
		t.shards[first].Lock()
		return func() { t.shards[first].Unlock() }
	}
	if first > second {
		first, second = second, first
	}
	t.shards[first].Lock()
	t.shards[second].Lock()
	return func() {
		t.shards[second].Unlock()
		t.shards[first].Unlock()
	}
}

// shardFor uses FNV-1a for better hash distribution than simple
// multiply-add.
func shardFor(s string) int {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return int(h % numLendingShards)
}

// PostgresTx wraps each lending mutation in a serializable database
// transaction carried through the context, with the same sharded locks
// in front to keep intra-process contention off the database.
type PostgresTx struct {
	db      *sql.DB
	locks   *ShardedTx
	timeout time.Duration
}

func NewPostgresTx(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db, locks: NewShardedTx()}
}

func (t *PostgresTx) RunInTx(ctx context.Context, bookID id.BookID, borrowerID id.UserID, fn func(ctx context.Context) error) error {
	return t.locks.RunInTx(ctx, bookID, borrowerID, func(ctx context.Context) error {
		tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "beginning transaction")
		}
		defer func() {
			_ = tx.Rollback()
		}()

		if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "committing transaction")
		}
		return nil
	})
}
