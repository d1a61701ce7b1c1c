package models

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSource = AuditSource{IPAddress: "10.0.0.7", UserAgent: "curl/8.5.0"}

func TestNewSignupAudit(t *testing.T) {
	account := &Account{ID: uuid.New(), Username: gofakeit.Username(), AccountNumber: "1460676351"}

	log := NewSignupAudit(account, testSource)

	assert.Equal(t, AuditActionSignup, log.Action)
	require.NotNil(t, log.AccountID)
	assert.Equal(t, account.ID, *log.AccountID)
	assert.Equal(t, account.Username, log.Username)
	assert.Equal(t, "10.0.0.7", log.IPAddress)
	assert.Equal(t, "curl/8.5.0", log.UserAgent)
	assert.Equal(t, AuditDetails{"account_number": "1460676351"}, log.Details)
}

func TestNewSignupFailedAudit_HasNoAccount(t *testing.T) {
	log := NewSignupFailedAudit("taken_name", ReasonUsernameTaken, testSource)

	assert.Equal(t, AuditActionSignupFailed, log.Action)
	assert.Nil(t, log.AccountID)
	assert.Equal(t, "taken_name", log.Username)
	assert.Equal(t, "username_taken", log.Details["reason"])
}

func TestNewFailedLoginAudit(t *testing.T) {
	t.Run("unknown username", func(t *testing.T) {
		log := NewFailedLoginAudit(nil, "nobody", ReasonAccountNotFound, testSource)

		assert.Equal(t, AuditActionFailedLogin, log.Action)
		assert.Nil(t, log.AccountID)
		assert.Equal(t, "nobody", log.Username)
		assert.Equal(t, AuditDetails{"reason": "account_not_found"}, log.Details)
	})

	t.Run("known account counts attempts", func(t *testing.T) {
		account := &Account{ID: uuid.New(), Username: "john_doe", FailedLoginAttempts: 2}

		log := NewFailedLoginAudit(account, "john_doe", ReasonInvalidPassword, testSource)

		require.NotNil(t, log.AccountID)
		assert.Equal(t, account.ID, *log.AccountID)
		assert.Equal(t, "invalid_password", log.Details["reason"])
		assert.Equal(t, "2", log.Details["failed_attempts"])
	})
}

func TestNewLockoutAudit(t *testing.T) {
	account := &Account{ID: uuid.New(), Username: "john_doe", FailedLoginAttempts: 2}
	account.IncrementFailedAttempts(3)
	require.True(t, account.IsLocked())

	log := NewLockoutAudit(account, testSource)

	assert.Equal(t, AuditActionAccountLocked, log.Action)
	assert.Equal(t, "3", log.Details["failed_attempts"])
	lockedAt, err := time.Parse(time.RFC3339, log.Details["locked_at"])
	require.NoError(t, err)
	assert.WithinDuration(t, *account.LockedAt, lockedAt, time.Second)
}

func TestNewSessionAudit(t *testing.T) {
	id := uuid.New()

	for _, action := range []AuditAction{AuditActionLogin, AuditActionLogout} {
		log := NewSessionAudit(action, id, "john_doe", testSource)

		assert.Equal(t, action, log.Action)
		assert.Equal(t, id, *log.AccountID)
		assert.Empty(t, log.Details)
	}
}

func TestAuditLog_BeforeCreate(t *testing.T) {
	log := NewSessionAudit(AuditActionLogin, uuid.New(), "john_doe", testSource)

	require.NoError(t, log.BeforeCreate(nil))

	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.False(t, log.CreatedAt.IsZero())
}

func TestAuditDetails_ValueAndScan(t *testing.T) {
	details := AuditDetails{"reason": "invalid_password", "failed_attempts": "2"}

	value, err := details.Value()
	require.NoError(t, err)
	assert.IsType(t, "", value)

	var fromText AuditDetails
	require.NoError(t, fromText.Scan(value))
	assert.Equal(t, details, fromText)

	var fromBytes AuditDetails
	require.NoError(t, fromBytes.Scan([]byte(value.(string))))
	assert.Equal(t, details, fromBytes)

	empty, err := AuditDetails{}.Value()
	require.NoError(t, err)
	assert.Nil(t, empty)

	var scanned AuditDetails
	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
	assert.Error(t, scanned.Scan(42))
}
