package payment

import (
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"gorm.io/gorm"
)

// Platform revenue split: 90% to the consultant, 10% to the platform.
const (
	ConsultantShareRate = 0.90
	AdminShareRate      = 0.10
)

func roundCentavos(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// HasPaid reports whether a completed earning entry exists for the
// (user, consultant, appointment) triple. This is the payment gate: the chat
// screen is only entered when it returns true.
func HasPaid(db *gorm.DB, userID, consultantID, appointmentID uint) (bool, error) {
	var count int64
	err := db.Model(&models.LedgerEntry{}).
		Where("user_id = ? AND consultant_id = ? AND appointment_id = ? AND type = ? AND status = ?",
			userID, consultantID, appointmentID,
			models.LedgerConsultantEarning, models.LedgerCompleted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Settlement is the pair of ledger rows a successful payment produces.
type Settlement struct {
	ConsultantEntry models.LedgerEntry `json:"consultant_entry"`
	AdminEntry      models.LedgerEntry `json:"admin_entry"`
	AlreadySettled  bool               `json:"already_settled"`
}

// SettlePayment splits the gross session fee and appends both ledger rows in
// one transaction. Idempotent per appointment: a retry finds the existing
// earning entry inside the transaction and returns the original rows instead
// of crediting again.
func SettlePayment(db *gorm.DB, appointmentID, userID, consultantID uint, grossFee float64) (*Settlement, error) {
	if appointmentID == 0 || userID == 0 || consultantID == 0 {
		return nil, models.SettlementError("appointment, user and consultant references are required")
	}
	if grossFee <= 0 {
		return nil, models.SettlementError("gross fee must be positive")
	}

	var settlement Settlement
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing models.LedgerEntry
		err := tx.Where("appointment_id = ? AND type = ?", appointmentID, models.LedgerConsultantEarning).
			First(&existing).Error
		if err == nil {
			var adminEntry models.LedgerEntry
			if err := tx.Where("appointment_id = ? AND type = ?", appointmentID, models.LedgerAdminIncome).
				First(&adminEntry).Error; err != nil {
				return err
			}
			settlement = Settlement{
				ConsultantEntry: existing,
				AdminEntry:      adminEntry,
				AlreadySettled:  true,
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		consultantShare := roundCentavos(grossFee * ConsultantShareRate)
		adminShare := roundCentavos(grossFee * AdminShareRate)
		reference := uuid.New().String()

		consultantEntry := models.LedgerEntry{
			ConsultantID:  &consultantID,
			UserID:        &userID,
			AppointmentID: &appointmentID,
			Type:          models.LedgerConsultantEarning,
			Amount:        consultantShare,
			Status:        models.LedgerCompleted,
			Reference:     reference,
		}
		adminEntry := models.LedgerEntry{
			UserID:        &userID,
			AppointmentID: &appointmentID,
			Type:          models.LedgerAdminIncome,
			Amount:        adminShare,
			Status:        models.LedgerCompleted,
			Reference:     reference,
		}

		if err := tx.Create(&consultantEntry).Error; err != nil {
			return err
		}
		if err := tx.Create(&adminEntry).Error; err != nil {
			return err
		}

		settlement = Settlement{
			ConsultantEntry: consultantEntry,
			AdminEntry:      adminEntry,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}
