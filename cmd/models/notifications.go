package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification types emitted by lifecycle transitions.
const (
	NotifBookingRequest   = "booking_request"
	NotifBookingAccepted  = "booking_accepted"
	NotifBookingRejected  = "booking_rejected"
	NotifBookingCancelled = "booking_cancelled"
	NotifSessionCompleted = "session_completed"
	NotifPaymentReceived  = "payment_received"
	NotifPayoutRequested  = "payout_requested"
	NotifPayoutApproved   = "payout_approved"
	NotifPayoutDeclined   = "payout_declined"
)

// Notification is written in the same transaction as the transition that
// triggers it, so a failed transition never leaves a stray notification.
// Read is the only field mutated after creation.
type Notification struct {
	gorm.Model
	RecipientID   uint   `gorm:"column:recipient_id;not null;index" json:"recipient_id"`
	RecipientRole string `gorm:"column:recipient_role;size:20;not null" json:"recipient_role"`
	Type          string `gorm:"column:type;size:40;not null" json:"type"`
	Title         string `gorm:"column:title;size:255;not null" json:"title"`
	Message       string `gorm:"column:message;type:text" json:"message"`
	Read          bool   `gorm:"column:read;default:false;index" json:"read"`
	AppointmentID *uint  `gorm:"column:appointment_id" json:"appointment_id,omitempty"`
	PayoutID      *uint  `gorm:"column:payout_id" json:"payout_id,omitempty"`
}

// Device holds an Expo push token for one installed app instance.
type Device struct {
	gorm.Model
	Token      string `gorm:"not null;uniqueIndex:idx_token_user" json:"token"`
	UserID     uint   `gorm:"not null;index;uniqueIndex:idx_token_user" json:"user_id"`
	DeviceType string `gorm:"type:varchar(50)" json:"device_type"`
	DeviceName string `gorm:"type:varchar(100)" json:"device_name,omitempty"`
}

// NotificationHistory records each push attempt so deliveries can be audited.
type NotificationHistory struct {
	gorm.Model
	UserID uint      `gorm:"index" json:"user_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Data   string    `gorm:"type:text" json:"data,omitempty"`
	Status string    `gorm:"type:varchar(20)" json:"status"`
	SentAt time.Time `json:"sent_at"`
}
