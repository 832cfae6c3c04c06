package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"github.com/konsulta-ph/Konsulta-server/service/chat"
	"github.com/konsulta-ph/Konsulta-server/service/notification"
	"gorm.io/gorm"
)

// CreateParams is everything a booking needs at creation time. SessionFee is
// frozen here; later fee changes on the consultant profile do not reprice
// existing bookings.
type CreateParams struct {
	UserID        uint
	ConsultantID  uint
	AppointmentAt time.Time
	Notes         string
	SessionFee    float64
}

// Create books a new appointment in pending and notifies the consultant.
func Create(db *gorm.DB, now time.Time, p CreateParams) (*models.Appointment, error) {
	if !p.AppointmentAt.After(now) {
		return nil, models.ValidationError("appointment time must be in the future")
	}
	if p.SessionFee <= 0 {
		return nil, models.ValidationError("session fee must be positive")
	}

	var appointment models.Appointment
	err := db.Transaction(func(tx *gorm.DB) error {
		var consultant models.Consultant
		if err := tx.First(&consultant, p.ConsultantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NotFoundError("consultant %d does not exist", p.ConsultantID)
			}
			return err
		}

		appointment = models.Appointment{
			UserID:        p.UserID,
			ConsultantID:  p.ConsultantID,
			AppointmentAt: p.AppointmentAt,
			Notes:         p.Notes,
			SessionFee:    p.SessionFee,
			Status:        models.AppointmentPending,
		}
		if err := tx.Create(&appointment).Error; err != nil {
			return err
		}

		return notification.Emit(tx, consultant.UserID, models.RoleConsultant,
			models.NotifBookingRequest,
			"New booking request",
			fmt.Sprintf("You have a new consultation request for %s", p.AppointmentAt.Format("Jan 2, 3:04 PM")),
			notification.Refs{AppointmentID: &appointment.ID})
	})
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

// Accept moves a pending appointment to accepted, provisions the chat room and
// notifies the user. The status flip is a compare-and-set on pending so two
// racing accepts cannot both win.
func Accept(db *gorm.DB, now time.Time, appointmentID, callerUserID uint) (*models.Appointment, *models.ChatRoom, error) {
	var appointment models.Appointment
	var room *models.ChatRoom

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := loadForConsultant(tx, appointmentID, callerUserID, &appointment); err != nil {
			return err
		}
		if now.After(appointment.AppointmentAt.Add(models.SessionWindow)) {
			return models.StateConflict("session window has elapsed")
		}

		result := tx.Model(&models.Appointment{}).
			Where("id = ? AND status = ?", appointmentID, models.AppointmentPending).
			Update("status", models.AppointmentAccepted)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.StateConflict("appointment is not pending")
		}
		appointment.Status = models.AppointmentAccepted

		provisioned, err := chat.Provision(tx, &appointment)
		if err != nil {
			return err
		}
		room = provisioned

		if err := tx.Model(&appointment).Update("chat_room_id", room.ID).Error; err != nil {
			return err
		}

		return notification.Emit(tx, appointment.UserID, models.RoleUser,
			models.NotifBookingAccepted,
			"Booking accepted",
			"Your consultation request has been accepted",
			notification.Refs{AppointmentID: &appointment.ID})
	})
	if err != nil {
		return nil, nil, err
	}
	return &appointment, room, nil
}

// Decline rejects a pending appointment. No chat room is created.
func Decline(db *gorm.DB, appointmentID, callerUserID uint) (*models.Appointment, error) {
	var appointment models.Appointment

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := loadForConsultant(tx, appointmentID, callerUserID, &appointment); err != nil {
			return err
		}

		result := tx.Model(&models.Appointment{}).
			Where("id = ? AND status = ?", appointmentID, models.AppointmentPending).
			Update("status", models.AppointmentDeclined)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.StateConflict("appointment is not pending")
		}
		appointment.Status = models.AppointmentDeclined

		return notification.Emit(tx, appointment.UserID, models.RoleUser,
			models.NotifBookingRejected,
			"Booking declined",
			"Your consultation request was declined",
			notification.Refs{AppointmentID: &appointment.ID})
	})
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

// Cancel is user-initiated and only allowed before the session window opens.
func Cancel(db *gorm.DB, now time.Time, appointmentID, callerUserID uint) (*models.Appointment, error) {
	var appointment models.Appointment

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appointment, appointmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NotFoundError("appointment %d does not exist", appointmentID)
			}
			return err
		}
		if appointment.UserID != callerUserID {
			return models.ErrForbidden
		}
		if !now.Before(appointment.AppointmentAt) {
			return models.StateConflict("session window has already started")
		}

		result := tx.Model(&models.Appointment{}).
			Where("id = ? AND status IN ?", appointmentID,
				[]string{models.AppointmentPending, models.AppointmentAccepted}).
			Update("status", models.AppointmentCancelled)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.StateConflict("appointment can no longer be cancelled")
		}
		appointment.Status = models.AppointmentCancelled

		var consultant models.Consultant
		if err := tx.First(&consultant, appointment.ConsultantID).Error; err != nil {
			return err
		}

		return notification.Emit(tx, consultant.UserID, models.RoleConsultant,
			models.NotifBookingCancelled,
			"Booking cancelled",
			"A booked consultation has been cancelled by the client",
			notification.Refs{AppointmentID: &appointment.ID})
	})
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

// Complete closes out an accepted session and its chat room.
func Complete(db *gorm.DB, appointmentID, callerUserID uint) (*models.Appointment, error) {
	var appointment models.Appointment

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := loadForConsultant(tx, appointmentID, callerUserID, &appointment); err != nil {
			return err
		}

		result := tx.Model(&models.Appointment{}).
			Where("id = ? AND status = ?", appointmentID, models.AppointmentAccepted).
			Update("status", models.AppointmentCompleted)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.StateConflict("appointment is not accepted")
		}
		appointment.Status = models.AppointmentCompleted

		if err := tx.Model(&models.ChatRoom{}).
			Where("appointment_id = ?", appointmentID).
			Update("status", models.ChatRoomCompleted).Error; err != nil {
			return err
		}

		return notification.Emit(tx, appointment.UserID, models.RoleUser,
			models.NotifSessionCompleted,
			"Session completed",
			"Your consultation session has been marked as completed",
			notification.Refs{AppointmentID: &appointment.ID})
	})
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

// DeriveViewStatus projects a display status from the stored status and the
// clock. Pure and never persisted; callers recompute it on every read.
func DeriveViewStatus(appointment *models.Appointment, now time.Time) string {
	switch appointment.Status {
	case models.AppointmentCancelled:
		return models.ViewCancelled
	case models.AppointmentDeclined, models.AppointmentCompleted:
		return models.ViewPast
	}

	windowEnd := appointment.AppointmentAt.Add(models.SessionWindow)
	if now.After(windowEnd) {
		return models.ViewPast
	}
	if appointment.Status == models.AppointmentAccepted && !now.Before(appointment.AppointmentAt) {
		return models.ViewOngoing
	}
	return models.ViewUpcoming
}

// loadForConsultant fetches the appointment and verifies the caller is the
// assigned consultant's user account.
func loadForConsultant(tx *gorm.DB, appointmentID, callerUserID uint, appointment *models.Appointment) error {
	if err := tx.First(appointment, appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NotFoundError("appointment %d does not exist", appointmentID)
		}
		return err
	}

	var consultant models.Consultant
	if err := tx.First(&consultant, appointment.ConsultantID).Error; err != nil {
		return err
	}
	if consultant.UserID != callerUserID {
		return models.ErrForbidden
	}
	return nil
}
