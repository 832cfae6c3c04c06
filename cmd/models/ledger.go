package models

import (
	"gorm.io/gorm"
)

// Ledger entry types. Earnings and reversals carry positive amounts,
// withdrawals negative. A consultant's available balance is always
// SUM(amount) over their entries, never a mutable counter.
const (
	LedgerConsultantEarning = "consultant_earning"
	LedgerAdminIncome       = "admin_income"
	LedgerWithdraw          = "withdraw"
	LedgerWithdrawReversal  = "withdraw_reversal"
)

const (
	LedgerPending   = "pending"
	LedgerCompleted = "completed"
)

// LedgerEntry is append-only: no handler or service updates or deletes rows.
// Corrections are compensating entries (see LedgerWithdrawReversal).
//
// The unique (appointment_id, type) index backstops settlement idempotency:
// even if two settlements race past the in-transaction existence check, only
// one pair of rows can land. Payout entries carry a NULL appointment_id and
// are unaffected.
type LedgerEntry struct {
	gorm.Model
	ConsultantID  *uint   `gorm:"column:consultant_id;index" json:"consultant_id,omitempty"`
	UserID        *uint   `gorm:"column:user_id;index" json:"user_id,omitempty"`
	AppointmentID *uint   `gorm:"column:appointment_id;uniqueIndex:idx_ledger_appointment_type" json:"appointment_id,omitempty"`
	PayoutID      *uint   `gorm:"column:payout_id;index" json:"payout_id,omitempty"`
	Type          string  `gorm:"column:type;size:30;not null;uniqueIndex:idx_ledger_appointment_type" json:"type"`
	Amount        float64 `gorm:"column:amount;not null" json:"amount"`
	Status        string  `gorm:"column:status;size:20;not null;default:completed" json:"status"`
	Reference     string  `gorm:"column:reference;size:64;index" json:"reference"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
