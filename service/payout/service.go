package payout

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"github.com/konsulta-ph/Konsulta-server/service/ledger"
	"github.com/konsulta-ph/Konsulta-server/service/notification"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resolution decisions for a pending payout.
const (
	DecisionApprove = "approve"
	DecisionDecline = "decline"
)

// RequestWithdrawal creates a pending payout request and debits the ledger in
// the same transaction. Debiting at request time means the balance reflects
// the hold immediately; a decline later compensates with a reversal entry.
func RequestWithdrawal(db *gorm.DB, consultantID uint, amount float64, gcashNumber string) (*models.PayoutRequest, error) {
	if amount <= 0 {
		return nil, models.ValidationError("withdrawal amount must be positive")
	}
	if gcashNumber == "" {
		return nil, models.ValidationError("GCash number is required")
	}

	var request models.PayoutRequest
	err := db.Transaction(func(tx *gorm.DB) error {
		// Locking the consultant row serializes concurrent requests so two
		// withdrawals cannot both pass the balance check and overdraw.
		var consultant models.Consultant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&consultant, consultantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NotFoundError("consultant %d does not exist", consultantID)
			}
			return err
		}

		balance, err := ledger.AvailableBalance(tx, consultantID)
		if err != nil {
			return err
		}
		if amount > balance {
			return fmt.Errorf("%w: available balance is %.2f", models.ErrInsufficientBalance, balance)
		}

		request = models.PayoutRequest{
			ConsultantID: consultantID,
			Amount:       amount,
			GcashNumber:  gcashNumber,
			Status:       models.PayoutPending,
			Reference:    uuid.New().String(),
		}
		if err := tx.Create(&request).Error; err != nil {
			return err
		}

		debit := models.LedgerEntry{
			ConsultantID: &consultantID,
			PayoutID:     &request.ID,
			Type:         models.LedgerWithdraw,
			Amount:       -amount,
			Status:       models.LedgerCompleted,
			Reference:    request.Reference,
		}
		if err := tx.Create(&debit).Error; err != nil {
			return err
		}

		return notifyAdmins(tx, &request)
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// ResolveWithdrawal applies the terminal transition on a pending payout. The
// status flip is a compare-and-set; a request already resolved rejects any
// further attempt. Decline appends the compensating reversal in the same
// transaction so the consultant's balance is restored exactly.
func ResolveWithdrawal(db *gorm.DB, payoutID uint, decision string, adminID uint) (*models.PayoutRequest, error) {
	if decision != DecisionApprove && decision != DecisionDecline {
		return nil, models.ValidationError("decision must be approve or decline")
	}

	var request models.PayoutRequest
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, payoutID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NotFoundError("payout request %d does not exist", payoutID)
			}
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"resolved_by": adminID,
		}
		notifType := models.NotifPayoutApproved
		title := "Withdrawal approved"
		message := fmt.Sprintf("Your withdrawal of %.2f has been approved and sent to your GCash account", request.Amount)

		if decision == DecisionApprove {
			updates["status"] = models.PayoutApproved
			updates["approved_at"] = now
		} else {
			updates["status"] = models.PayoutDeclined
			updates["declined_at"] = now
			notifType = models.NotifPayoutDeclined
			title = "Withdrawal declined"
			message = fmt.Sprintf("Your withdrawal of %.2f was declined and the amount was returned to your balance", request.Amount)
		}

		result := tx.Model(&models.PayoutRequest{}).
			Where("id = ? AND status = ?", payoutID, models.PayoutPending).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.StateConflict("payout request has already been resolved")
		}

		if decision == DecisionDecline {
			reversal := models.LedgerEntry{
				ConsultantID: &request.ConsultantID,
				PayoutID:     &request.ID,
				Type:         models.LedgerWithdrawReversal,
				Amount:       request.Amount,
				Status:       models.LedgerCompleted,
				Reference:    request.Reference,
			}
			if err := tx.Create(&reversal).Error; err != nil {
				return err
			}
		}

		var consultant models.Consultant
		if err := tx.First(&consultant, request.ConsultantID).Error; err != nil {
			return err
		}
		if err := notification.Emit(tx, consultant.UserID, models.RoleConsultant,
			notifType, title, message,
			notification.Refs{PayoutID: &request.ID}); err != nil {
			return err
		}

		return tx.First(&request, payoutID).Error
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// notifyAdmins emits the payout_requested notification to every admin account.
func notifyAdmins(tx *gorm.DB, request *models.PayoutRequest) error {
	var admins []models.User
	if err := tx.Where("role = ?", models.RoleAdmin).Find(&admins).Error; err != nil {
		return err
	}
	for _, admin := range admins {
		if err := notification.Emit(tx, admin.ID, models.RoleAdmin,
			models.NotifPayoutRequested,
			"New withdrawal request",
			fmt.Sprintf("A consultant requested a withdrawal of %.2f", request.Amount),
			notification.Refs{PayoutID: &request.ID}); err != nil {
			return err
		}
	}
	return nil
}
