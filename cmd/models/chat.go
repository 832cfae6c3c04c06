package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ChatRoomOngoing   = "ongoing"
	ChatRoomCompleted = "completed"
)

// ChatRoom is 1:1 with an accepted appointment. It is provisioned exactly once,
// at the pending -> accepted transition; provisioning is idempotent.
type ChatRoom struct {
	gorm.Model
	AppointmentID    uint      `gorm:"column:appointment_id;not null;uniqueIndex" json:"appointment_id"`
	UserID           uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	ConsultantID     uint      `gorm:"column:consultant_id;not null;index" json:"consultant_id"`
	Status           string    `gorm:"column:status;size:20;not null;default:ongoing" json:"status"`
	ChannelID        string    `gorm:"column:channel_id;size:64" json:"channel_id"`
	LastMessage      string    `gorm:"column:last_message;type:text" json:"last_message"`
	LastMessageAt    time.Time `gorm:"column:last_message_at" json:"last_message_at"`
	UserUnread       bool      `gorm:"column:user_unread;default:false" json:"user_unread"`
	ConsultantUnread bool      `gorm:"column:consultant_unread;default:false" json:"consultant_unread"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"appointment,omitempty"`
}

func (ChatRoom) TableName() string {
	return "chat_rooms"
}
