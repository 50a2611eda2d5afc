package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// writeTxOptions opens every writing transaction at READ COMMITTED.  Locking
// reads of absent rows take no gap locks at that level, so two writers
// inserting the same key queue on it and the later one gets ER_DUP_ENTRY.
var writeTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// maxTxAttempts bounds how often a deadlock victim is run again.  InnoDB
// rolls the victim back entirely, so a rerun starts from a clean state.
const maxTxAttempts = 3

// mysqlDeadlock is ER_LOCK_DEADLOCK.
const mysqlDeadlock = 1213

func isDeadlock(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDeadlock
}

// inTx runs fn in a transaction and commits when fn returns nil.  A
// transaction chosen as a deadlock victim is retried; the error from fn is
// otherwise returned unchanged.
func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runTx(ctx, db, fn)
		if !isDeadlock(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func runTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, writeTxOptions)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
