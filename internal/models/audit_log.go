package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditAction names an authentication event. Balance changes are not
// audited here; the ledger log is their record.
type AuditAction string

const (
	AuditActionSignup        AuditAction = "signup"
	AuditActionSignupFailed  AuditAction = "signup_failed"
	AuditActionLogin         AuditAction = "login"
	AuditActionFailedLogin   AuditAction = "failed_login"
	AuditActionAccountLocked AuditAction = "account_locked"
	AuditActionLogout        AuditAction = "logout"
)

// AuditReason says why a signup or login was turned away
type AuditReason string

const (
	ReasonPasswordMismatch      AuditReason = "password_mismatch"
	ReasonInvalidOpeningDeposit AuditReason = "invalid_opening_deposit"
	ReasonWeakPassword          AuditReason = "weak_password"
	ReasonUsernameTaken         AuditReason = "username_taken"
	ReasonAccountNotFound       AuditReason = "account_not_found"
	ReasonAccountLocked         AuditReason = "account_locked"
	ReasonInvalidPassword       AuditReason = "invalid_password"
)

// AuditSource is the client an authentication request came from
type AuditSource struct {
	IPAddress string
	UserAgent string
}

// AuditLog is one authentication event
type AuditLog struct {
	ID        uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	AccountID *uuid.UUID   `gorm:"type:uuid;index" json:"account_id,omitempty"`
	Username  string       `gorm:"type:varchar(20);index" json:"username,omitempty"`
	Action    AuditAction  `gorm:"type:varchar(100);not null;index" json:"action"`
	IPAddress string       `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent string       `gorm:"type:text" json:"user_agent,omitempty"`
	Details   AuditDetails `gorm:"column:metadata;type:text" json:"details,omitempty"`
	CreatedAt time.Time    `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (al *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if al.ID == uuid.Nil {
		al.ID = uuid.New()
	}
	if al.CreatedAt.IsZero() {
		al.CreatedAt = time.Now()
	}
	return nil
}

func newAuditLog(action AuditAction, accountID *uuid.UUID, username string, src AuditSource) *AuditLog {
	return &AuditLog{
		AccountID: accountID,
		Username:  username,
		Action:    action,
		IPAddress: src.IPAddress,
		UserAgent: src.UserAgent,
	}
}

// NewSignupAudit records an opened account and the number it was given
func NewSignupAudit(account *Account, src AuditSource) *AuditLog {
	log := newAuditLog(AuditActionSignup, &account.ID, account.Username, src)
	log.Details = AuditDetails{"account_number": account.AccountNumber}
	return log
}

// NewSignupFailedAudit records a rejected signup. No account exists yet.
func NewSignupFailedAudit(username string, reason AuditReason, src AuditSource) *AuditLog {
	log := newAuditLog(AuditActionSignupFailed, nil, username, src)
	log.Details = AuditDetails{"reason": string(reason)}
	return log
}

// NewFailedLoginAudit records a rejected login. account is nil when the
// username matched no account.
func NewFailedLoginAudit(account *Account, username string, reason AuditReason, src AuditSource) *AuditLog {
	var accountID *uuid.UUID
	details := AuditDetails{"reason": string(reason)}
	if account != nil {
		accountID = &account.ID
		username = account.Username
		details["failed_attempts"] = strconv.Itoa(account.FailedLoginAttempts)
	}

	log := newAuditLog(AuditActionFailedLogin, accountID, username, src)
	log.Details = details
	return log
}

// NewLockoutAudit records the failed attempt that locked an account
func NewLockoutAudit(account *Account, src AuditSource) *AuditLog {
	log := newAuditLog(AuditActionAccountLocked, &account.ID, account.Username, src)
	log.Details = AuditDetails{"failed_attempts": strconv.Itoa(account.FailedLoginAttempts)}
	if account.LockedAt != nil {
		log.Details["locked_at"] = account.LockedAt.UTC().Format(time.RFC3339)
	}
	return log
}

// NewSessionAudit records a login or logout
func NewSessionAudit(action AuditAction, accountID uuid.UUID, username string, src AuditSource) *AuditLog {
	return newAuditLog(action, &accountID, username, src)
}

// AuditDetails is stored as JSON text so both SQLite and Postgres hold it
type AuditDetails map[string]string

func (d AuditDetails) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(map[string]string(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *AuditDetails) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AuditDetails", value)
	}

	if len(raw) == 0 {
		*d = nil
		return nil
	}
	return json.Unmarshal(raw, (*map[string]string)(d))
}
