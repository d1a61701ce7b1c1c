package repositories

import (
	"context"
	"errors"
	"fmt"

	"bankledger/internal/models"

	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

var ErrDuplicateReference = errors.New("ledger reference already recorded")

// ledgerRepository implements LedgerRepositoryInterface
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) LedgerRepositoryInterface {
	return &ledgerRepository{db: db}
}

// Append persists a new entry; the database assigns its ID
func (r *ledgerRepository) Append(ctx context.Context, entry *models.LedgerEntry) error {
	if entry == nil {
		return errors.New("ledger entry cannot be nil")
	}
	if entry.ID != 0 {
		return errors.New("ledger entry already appended")
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// ListByUsername returns every entry of the account, oldest first
func (r *ledgerRepository) ListByUsername(ctx context.Context, username string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("account_username = ?", username).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// ListByUsernamePage returns up to limit entries with IDs above afterID, oldest first
func (r *ledgerRepository) ListByUsernamePage(ctx context.Context, username string, afterID uint64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("account_username = ? AND id > ?", username, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger page: %w", err)
	}
	return entries, nil
}
