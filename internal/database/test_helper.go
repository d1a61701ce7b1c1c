package database

import (
	"fmt"
	"path/filepath"
	"testing"

	"bankledger/internal/config"
	"bankledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a migrated in-memory SQLite database.
// The pool is pinned to one connection so every query sees the same database.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()
	return openTestDB(t, ":memory:", 1)
}

// SetupFileTestDB opens a migrated SQLite file shared by maxConns connections.
// Transactions on different connections contend for the write lock, so
// concurrent writers can fail with SQLITE_BUSY.
func SetupFileTestDB(t *testing.T, maxConns int) *DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ledger.db") + "?_busy_timeout=50"
	return openTestDB(t, dsn, maxConns)
}

func openTestDB(t *testing.T, dsn string, maxConns int) *DB {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)

	testDB := &DB{
		DB: db,
		config: &config.DatabaseConfig{
			Driver:         config.DriverSQLite,
			MaxConnections: maxConns,
			MaxIdleConns:   maxConns,
		},
	}

	if err := testDB.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return testDB
}

// CreateTestAccount inserts an account with the given opening balance and a matching deposit entry
func CreateTestAccount(t *testing.T, db *DB, username, accountNumber string, balance decimal.Decimal) *models.Account {
	t.Helper()

	account := &models.Account{
		AccountNumber: accountNumber,
		FullName:      "Test User",
		Username:      username,
		PasswordHash:  "hashed_password",
		Balance:       balance,
	}

	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}

	if balance.GreaterThan(decimal.Zero) {
		entry := &models.LedgerEntry{
			AccountUsername:  username,
			AccountNumber:    accountNumber,
			EntryType:        models.EntryTypeDeposit,
			Amount:           balance,
			ResultingBalance: balance,
		}
		if err := db.Create(entry).Error; err != nil {
			t.Fatalf("failed to create opening entry: %v", err)
		}
	}

	return account
}

// CleanupTestDB empties every table
func CleanupTestDB(t *testing.T, db *DB) {
	t.Helper()

	tables := []string{
		"ledger_entries",
		"accounts",
		"audit_logs",
		"blacklisted_tokens",
	}

	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			t.Logf("failed to cleanup table %s: %v", table, err)
		}
	}
}
