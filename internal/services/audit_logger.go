package services

import (
	"context"
	"log/slog"
	"time"

	"bankledger/internal/models"
)

type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) AuditLoggerInterface {
	return &AuditLogger{
		logger: logger,
	}
}

func (al *AuditLogger) LogBalanceChange(ctx context.Context, operation, username, amount, newBalance string, entryID uint64) {
	al.logger.InfoContext(ctx, "balance change",
		slog.String("event_type", "balance_change"),
		slog.String("operation", operation),
		slog.String("username", username),
		slog.String("amount", amount),
		slog.String("new_balance", newBalance),
		slog.Uint64("entry_id", entryID),
		slog.Time("timestamp", time.Now()),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogOperationRejected(ctx context.Context, operation, username, reason string) {
	al.logger.WarnContext(ctx, "ledger operation rejected",
		slog.String("event_type", "operation_rejected"),
		slog.String("operation", operation),
		slog.String("username", username),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now()),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogTransferDeclined(ctx context.Context, sender, recipientAccountNumber, amount string) {
	al.logger.InfoContext(ctx, "transfer declined",
		slog.String("event_type", "transfer_declined"),
		slog.String("username", sender),
		slog.String("recipient_account_number", recipientAccountNumber),
		slog.String("amount", amount),
		slog.Time("timestamp", time.Now()),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogTransferCompleted(ctx context.Context, sender, fromAccountNumber, toAccountNumber, amount string, outEntryID, inEntryID uint64, durationMs int64) {
	al.logger.InfoContext(ctx, "transfer completed",
		slog.String("event_type", "transfer_completed"),
		slog.String("username", sender),
		slog.String("from_account_number", fromAccountNumber),
		slog.String("to_account_number", toAccountNumber),
		slog.String("amount", amount),
		slog.Uint64("transfer_out_entry_id", outEntryID),
		slog.Uint64("transfer_in_entry_id", inEntryID),
		slog.Int64("duration_ms", durationMs),
		slog.Time("timestamp", time.Now()),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogAccountOpened(ctx context.Context, username, accountNumber, openingDeposit string) {
	al.logger.InfoContext(ctx, "account opened",
		slog.String("event_type", "account_opened"),
		slog.String("username", username),
		slog.String("account_number", accountNumber),
		slog.String("opening_deposit", openingDeposit),
		slog.Time("timestamp", time.Now()),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogReplayMismatch(ctx context.Context, username, storedBalance, replayedBalance string, mismatch *models.ReplayMismatch) {
	attrs := []slog.Attr{
		slog.String("event_type", "replay_mismatch"),
		slog.String("username", username),
		slog.String("stored_balance", storedBalance),
		slog.String("replayed_balance", replayedBalance),
		slog.Time("timestamp", time.Now()),
		slog.String("correlation_id", getCorrelationID(ctx)),
	}

	if mismatch != nil {
		attrs = append(attrs,
			slog.Uint64("entry_id", mismatch.EntryID),
			slog.String("entry_recorded_balance", mismatch.Recorded.StringFixed(2)),
			slog.String("entry_expected_balance", mismatch.Expected.StringFixed(2)),
		)
	}

	al.logger.LogAttrs(ctx, slog.LevelError, "ledger replay mismatch", attrs...)
}

func (al *AuditLogger) LogRetryAttempt(ctx context.Context, operation string, attempt, maxAttempts int, backoffMs int64, errorMsg string) {
	al.logger.InfoContext(ctx, "retry attempt",
		slog.String("event_type", "retry_attempt"),
		slog.String("operation", operation),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", maxAttempts),
		slog.Int64("backoff_ms", backoffMs),
		slog.String("error", errorMsg),
		slog.Time("timestamp", time.Now()),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func (al *AuditLogger) LogCircuitBreakerStateChange(ctx context.Context, service string, oldState, newState string) {
	al.logger.WarnContext(ctx, "circuit breaker state change",
		slog.String("event_type", "circuit_breaker_state_change"),
		slog.String("service", service),
		slog.String("old_state", oldState),
		slog.String("new_state", newState),
		slog.Time("timestamp", time.Now()),
		slog.String("correlation_id", getCorrelationID(ctx)),
	)
}

func getCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if correlationID, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return correlationID
	}

	if requestID, ok := ctx.Value("request_id").(string); ok {
		return requestID
	}

	return ""
}
