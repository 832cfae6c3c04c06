package models

import (
	"time"

	"gorm.io/gorm"
)

// Appointment lifecycle statuses. Transitions are one-directional:
// pending -> accepted | declined | cancelled, accepted -> cancelled | completed.
// declined, cancelled and completed are terminal.
const (
	AppointmentPending   = "pending"
	AppointmentAccepted  = "accepted"
	AppointmentDeclined  = "declined"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

// Display-only statuses derived from stored status plus the clock. Never persisted.
const (
	ViewUpcoming  = "upcoming"
	ViewOngoing   = "ongoing"
	ViewPast      = "past"
	ViewCancelled = "cancelled"
)

// SessionWindow is how long a session stays "ongoing" after its start instant.
const SessionWindow = 12 * time.Hour

type Appointment struct {
	gorm.Model
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	ConsultantID  uint      `gorm:"not null;index" json:"consultant_id"`
	AppointmentAt time.Time `gorm:"not null" json:"appointment_at"`
	Notes         string    `gorm:"type:text" json:"notes"`
	SessionFee    float64   `gorm:"not null" json:"session_fee"`
	Status        string    `gorm:"size:20;not null;default:pending;index" json:"status"`
	ChatRoomID    *uint     `json:"chat_room_id,omitempty"`

	User       *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Consultant *Consultant `gorm:"foreignKey:ConsultantID" json:"consultant,omitempty"`
}
