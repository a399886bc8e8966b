package repository

import (
	"context"

	"github.com/degencred/credbot/internal/errs"
	"gorm.io/gorm"
)

// Transaction runs fn atomically. A typed error returned by fn rolls the
// transaction back and is returned unchanged; anything else, including a
// timeout or a failed commit, surfaces as StorageUnavailable. Nested calls
// join the outer transaction.
func (r *Repository) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if r.inTx {
		return fn(r)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, logger: r.logger, timeout: r.timeout, inTx: true})
	})
	if err != nil {
		if errs.IsRetryable(err) {
			r.logger.Warnf("Transaction rolled back: %v", err)
		} else {
			r.logger.Debugf("Transaction rolled back: %v", err)
		}
		return errs.Storage(err)
	}
	return nil
}
