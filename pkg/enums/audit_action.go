package enums

import "fmt"

// AuditAction names a state-changing operation recorded in the audit trail.
type AuditAction string

const (
	AuditActionCommissionRateChanged    AuditAction = "commission.rate_changed"
	AuditActionClearanceOpened          AuditAction = "clearance.opened"
	AuditActionClearancePaused          AuditAction = "clearance.paused"
	AuditActionClearanceResumed         AuditAction = "clearance.resumed"
	AuditActionClearanceCancelled       AuditAction = "clearance.cancelled"
	AuditActionClearanceCleared         AuditAction = "clearance.cleared"
	AuditActionWithdrawalRequested      AuditAction = "withdrawal.requested"
	AuditActionPayoutRetried            AuditAction = "payout.retried"
	AuditActionPayoutManuallyCompleted  AuditAction = "payout.manually_completed"
	AuditActionPayoutWebhookReconciled  AuditAction = "payout.webhook_reconciled"
	AuditActionPayoutWebhookDuplicate   AuditAction = "payout.webhook_duplicate"
	AuditActionRefundRecorded           AuditAction = "refund.recorded"
	AuditActionDeductionRecorded        AuditAction = "deduction.recorded"
	AuditActionDeductionSettled         AuditAction = "deduction.settled"
)

var validAuditActions = []AuditAction{
	AuditActionCommissionRateChanged,
	AuditActionClearanceOpened,
	AuditActionClearancePaused,
	AuditActionClearanceResumed,
	AuditActionClearanceCancelled,
	AuditActionClearanceCleared,
	AuditActionWithdrawalRequested,
	AuditActionPayoutRetried,
	AuditActionPayoutManuallyCompleted,
	AuditActionPayoutWebhookReconciled,
	AuditActionPayoutWebhookDuplicate,
	AuditActionRefundRecorded,
	AuditActionDeductionRecorded,
	AuditActionDeductionSettled,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is known.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
