package models

import (
	"time"

	"gorm.io/gorm"
)

// Payout request statuses. pending -> approved | declined, both terminal.
const (
	PayoutPending  = "pending"
	PayoutApproved = "approved"
	PayoutDeclined = "declined"
)

// PayoutRequest converts ledger balance into an off-platform GCash transfer.
// The withdraw debit is written at request time; approval only flips status,
// decline appends a compensating reversal entry.
type PayoutRequest struct {
	gorm.Model
	ConsultantID uint       `gorm:"column:consultant_id;not null;index" json:"consultant_id"`
	Amount       float64    `gorm:"column:amount;not null" json:"amount"`
	GcashNumber  string     `gorm:"column:gcash_number;size:20;not null" json:"gcash_number"`
	Status       string     `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`
	Reference    string     `gorm:"column:reference;size:64;index" json:"reference"`
	ResolvedBy   *uint      `gorm:"column:resolved_by" json:"resolved_by,omitempty"`
	ApprovedAt   *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
	DeclinedAt   *time.Time `gorm:"column:declined_at" json:"declined_at,omitempty"`

	Consultant *Consultant `gorm:"foreignKey:ConsultantID" json:"consultant,omitempty"`
}

func (PayoutRequest) TableName() string {
	return "payout_requests"
}
