package notification

import (
	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"gorm.io/gorm"
)

// Refs points a notification back at the entity whose transition produced it.
type Refs struct {
	AppointmentID *uint
	PayoutID      *uint
}

// Emit appends a notification row inside the caller's transaction. Because the
// row rides on tx, a transition that rolls back emits nothing; delivery (push,
// websocket) happens after commit and is best-effort.
func Emit(tx *gorm.DB, recipientID uint, recipientRole, notifType, title, message string, refs Refs) error {
	n := models.Notification{
		RecipientID:   recipientID,
		RecipientRole: recipientRole,
		Type:          notifType,
		Title:         title,
		Message:       message,
		AppointmentID: refs.AppointmentID,
		PayoutID:      refs.PayoutID,
	}
	return tx.Create(&n).Error
}
