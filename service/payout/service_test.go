package payout

import (
	"testing"

	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"github.com/konsulta-ph/Konsulta-server/service/ledger"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Consultant{},
		&models.LedgerEntry{},
		&models.PayoutRequest{},
		&models.Notification{},
	)
	require.NoError(t, err)

	return db
}

// seedConsultant creates a consultant whose ledger balance is the given amount.
func seedConsultant(t *testing.T, db *gorm.DB, balance float64) models.Consultant {
	t.Helper()

	user := models.User{FullName: "Dr. Reyes", Email: "reyes@example.com", PasswordHash: "x", Role: models.RoleConsultant, Phone: "0918"}
	require.NoError(t, db.Create(&user).Error)

	consultant := models.Consultant{UserID: user.ID, GcashNumber: "09181234567"}
	require.NoError(t, db.Create(&consultant).Error)

	if balance > 0 {
		appointmentID := uint(1)
		earning := models.LedgerEntry{
			ConsultantID:  &consultant.ID,
			AppointmentID: &appointmentID,
			Type:          models.LedgerConsultantEarning,
			Amount:        balance,
			Status:        models.LedgerCompleted,
		}
		require.NoError(t, db.Create(&earning).Error)
	}

	return consultant
}

func seedAdmin(t *testing.T, db *gorm.DB) models.User {
	t.Helper()

	admin := models.User{FullName: "Admin", Email: "admin@example.com", PasswordHash: "x", Role: models.RoleAdmin, Phone: "0919"}
	require.NoError(t, db.Create(&admin).Error)
	return admin
}

func TestWithdrawFullBalanceThenNothingLeft(t *testing.T) {
	db := setupTestDB(t)
	seedAdmin(t, db)
	consultant := seedConsultant(t, db, 500)

	request, err := RequestWithdrawal(db, consultant.ID, 500, "09181234567")
	require.NoError(t, err)
	require.Equal(t, models.PayoutPending, request.Status)

	balance, err := ledger.AvailableBalance(db, consultant.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, balance)

	// Even one peso is now more than the balance.
	_, err = RequestWithdrawal(db, consultant.ID, 1.00, "09181234567")
	require.ErrorIs(t, err, models.ErrInsufficientBalance)
}

func TestWithdrawMoreThanBalance(t *testing.T) {
	db := setupTestDB(t)
	consultant := seedConsultant(t, db, 100)

	_, err := RequestWithdrawal(db, consultant.ID, 100.01, "09181234567")
	require.ErrorIs(t, err, models.ErrInsufficientBalance)

	// A rejected request must leave no debit behind.
	balance, err := ledger.AvailableBalance(db, consultant.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, balance)

	var requests int64
	require.NoError(t, db.Model(&models.PayoutRequest{}).Count(&requests).Error)
	require.Zero(t, requests)
}

func TestBackToBackRequestsCannotOverdraw(t *testing.T) {
	db := setupTestDB(t)
	consultant := seedConsultant(t, db, 500)

	_, err := RequestWithdrawal(db, consultant.ID, 300, "09181234567")
	require.NoError(t, err)

	// The second request sees the first debit and only 200 remains.
	_, err = RequestWithdrawal(db, consultant.ID, 300, "09181234567")
	require.ErrorIs(t, err, models.ErrInsufficientBalance)

	balance, err := ledger.AvailableBalance(db, consultant.ID)
	require.NoError(t, err)
	require.Equal(t, 200.0, balance)
}

func TestWithdrawValidation(t *testing.T) {
	db := setupTestDB(t)
	consultant := seedConsultant(t, db, 100)

	_, err := RequestWithdrawal(db, consultant.ID, 0, "09181234567")
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = RequestWithdrawal(db, consultant.ID, -10, "09181234567")
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = RequestWithdrawal(db, consultant.ID, 50, "")
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = RequestWithdrawal(db, 9999, 50, "09181234567")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestRequestNotifiesAdmins(t *testing.T) {
	db := setupTestDB(t)
	admin := seedAdmin(t, db)
	consultant := seedConsultant(t, db, 500)

	_, err := RequestWithdrawal(db, consultant.ID, 200, "09181234567")
	require.NoError(t, err)

	var notif models.Notification
	require.NoError(t, db.Where("type = ?", models.NotifPayoutRequested).First(&notif).Error)
	require.Equal(t, admin.ID, notif.RecipientID)
}

func TestApproveKeepsDebit(t *testing.T) {
	db := setupTestDB(t)
	consultant := seedConsultant(t, db, 500)

	request, err := RequestWithdrawal(db, consultant.ID, 300, "09181234567")
	require.NoError(t, err)

	resolved, err := ResolveWithdrawal(db, request.ID, DecisionApprove, 1)
	require.NoError(t, err)
	require.Equal(t, models.PayoutApproved, resolved.Status)
	require.NotNil(t, resolved.ApprovedAt)

	balance, err := ledger.AvailableBalance(db, consultant.ID)
	require.NoError(t, err)
	require.Equal(t, 200.0, balance)
}

func TestDeclineRestoresBalanceExactly(t *testing.T) {
	db := setupTestDB(t)
	consultant := seedConsultant(t, db, 500)

	request, err := RequestWithdrawal(db, consultant.ID, 300, "09181234567")
	require.NoError(t, err)

	resolved, err := ResolveWithdrawal(db, request.ID, DecisionDecline, 1)
	require.NoError(t, err)
	require.Equal(t, models.PayoutDeclined, resolved.Status)
	require.NotNil(t, resolved.DeclinedAt)

	balance, err := ledger.AvailableBalance(db, consultant.ID)
	require.NoError(t, err)
	require.Equal(t, 500.0, balance)

	// The debit is never deleted; the reversal compensates it.
	var reversal models.LedgerEntry
	require.NoError(t, db.Where("type = ?", models.LedgerWithdrawReversal).First(&reversal).Error)
	require.Equal(t, 300.0, reversal.Amount)

	var debits int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("type = ?", models.LedgerWithdraw).Count(&debits).Error)
	require.EqualValues(t, 1, debits)
}

func TestResolveIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	consultant := seedConsultant(t, db, 500)

	request, err := RequestWithdrawal(db, consultant.ID, 300, "09181234567")
	require.NoError(t, err)

	_, err = ResolveWithdrawal(db, request.ID, DecisionApprove, 1)
	require.NoError(t, err)

	_, err = ResolveWithdrawal(db, request.ID, DecisionApprove, 1)
	require.ErrorIs(t, err, models.ErrStateConflict)

	// Declining after approval must not fabricate a reversal.
	_, err = ResolveWithdrawal(db, request.ID, DecisionDecline, 1)
	require.ErrorIs(t, err, models.ErrStateConflict)

	var reversals int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("type = ?", models.LedgerWithdrawReversal).Count(&reversals).Error)
	require.Zero(t, reversals)
}

func TestResolveValidation(t *testing.T) {
	db := setupTestDB(t)

	_, err := ResolveWithdrawal(db, 1, "maybe", 1)
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = ResolveWithdrawal(db, 9999, DecisionApprove, 1)
	require.ErrorIs(t, err, models.ErrNotFound)
}
