package payment

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

	require.NoError(t, db.AutoMigrate(&models.LedgerEntry{}))
	return db
}

func TestSettlePaymentSplitsNinetyTen(t *testing.T) {
	db := setupTestDB(t)

	settlement, err := SettlePayment(db, 1, 10, 20, 1000)
	require.NoError(t, err)
	require.False(t, settlement.AlreadySettled)

	require.Equal(t, 900.0, settlement.ConsultantEntry.Amount)
	require.Equal(t, models.LedgerConsultantEarning, settlement.ConsultantEntry.Type)
	require.Equal(t, models.LedgerCompleted, settlement.ConsultantEntry.Status)

	require.Equal(t, 100.0, settlement.AdminEntry.Amount)
	require.Equal(t, models.LedgerAdminIncome, settlement.AdminEntry.Type)

	// Both rows of one settlement carry the same reference.
	require.Equal(t, settlement.ConsultantEntry.Reference, settlement.AdminEntry.Reference)

	balance, err := ledger.AvailableBalance(db, 20)
	require.NoError(t, err)
	require.Equal(t, 900.0, balance)

	income, err := ledger.PlatformIncome(db)
	require.NoError(t, err)
	require.Equal(t, 100.0, income)
}

func TestSettlePaymentRoundsToCentavos(t *testing.T) {
	db := setupTestDB(t)

	settlement, err := SettlePayment(db, 1, 10, 20, 99.99)
	require.NoError(t, err)
	require.Equal(t, 89.99, settlement.ConsultantEntry.Amount)
	require.Equal(t, 10.0, settlement.AdminEntry.Amount)
}

func TestSettlePaymentIdempotent(t *testing.T) {
	db := setupTestDB(t)

	first, err := SettlePayment(db, 1, 10, 20, 1000)
	require.NoError(t, err)

	// A retry must not credit again, and must hand back the original rows.
	second, err := SettlePayment(db, 1, 10, 20, 1000)
	require.NoError(t, err)
	require.True(t, second.AlreadySettled)
	require.Equal(t, first.ConsultantEntry.ID, second.ConsultantEntry.ID)
	require.Equal(t, first.AdminEntry.ID, second.AdminEntry.ID)

	var rows int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Count(&rows).Error)
	require.EqualValues(t, 2, rows)

	balance, err := ledger.AvailableBalance(db, 20)
	require.NoError(t, err)
	require.Equal(t, 900.0, balance)
}

func TestSettlementRowsUniquePerAppointment(t *testing.T) {
	db := setupTestDB(t)

	_, err := SettlePayment(db, 1, 10, 20, 1000)
	require.NoError(t, err)

	// The database refuses a second earning row for the same appointment even
	// when inserted outside the settlement path.
	consultantID, userID, appointmentID := uint(20), uint(10), uint(1)
	dup := models.LedgerEntry{
		ConsultantID:  &consultantID,
		UserID:        &userID,
		AppointmentID: &appointmentID,
		Type:          models.LedgerConsultantEarning,
		Amount:        900,
		Status:        models.LedgerCompleted,
	}
	require.Error(t, db.Create(&dup).Error)

	// Entries without an appointment reference stay unconstrained.
	first := models.LedgerEntry{ConsultantID: &consultantID, Type: models.LedgerWithdraw, Amount: -100, Status: models.LedgerCompleted}
	second := models.LedgerEntry{ConsultantID: &consultantID, Type: models.LedgerWithdraw, Amount: -50, Status: models.LedgerCompleted}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&second).Error)
}

func TestSettlePaymentValidation(t *testing.T) {
	db := setupTestDB(t)

	_, err := SettlePayment(db, 0, 10, 20, 1000)
	require.ErrorIs(t, err, models.ErrSettlement)

	_, err = SettlePayment(db, 1, 10, 20, 0)
	require.ErrorIs(t, err, models.ErrSettlement)

	_, err = SettlePayment(db, 1, 10, 20, -5)
	require.ErrorIs(t, err, models.ErrSettlement)

	var rows int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Count(&rows).Error)
	require.Zero(t, rows)
}

func TestHasPaidGate(t *testing.T) {
	db := setupTestDB(t)

	paid, err := HasPaid(db, 10, 20, 1)
	require.NoError(t, err)
	require.False(t, paid)

	_, err = SettlePayment(db, 1, 10, 20, 1000)
	require.NoError(t, err)

	paid, err = HasPaid(db, 10, 20, 1)
	require.NoError(t, err)
	require.True(t, paid)

	// The gate checks the full triple; a different appointment stays unpaid.
	paid, err = HasPaid(db, 10, 20, 2)
	require.NoError(t, err)
	require.False(t, paid)

	paid, err = HasPaid(db, 11, 20, 1)
	require.NoError(t, err)
	require.False(t, paid)
}
