package repositories

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

type unitOfWork struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

// NewUnitOfWork creates a unit of work over db.
// opts, when non-nil, sets the isolation level of every transaction.
func NewUnitOfWork(db *gorm.DB, opts *sql.TxOptions) UnitOfWorkInterface {
	return &unitOfWork{db: db, opts: opts}
}

// Do runs fn in a transaction and commits only if fn returns nil
func (u *unitOfWork) Do(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	var txOpts []*sql.TxOptions
	if u.opts != nil {
		txOpts = append(txOpts, u.opts)
	}

	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, Stores{
			Accounts: NewAccountRepository(tx),
			Ledger:   NewLedgerRepository(tx),
		})
	}, txOpts...)
}
