package ledger

import (
	"testing"

	"github.com/konsulta-ph/Konsulta-server/cmd/models"
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

func entry(consultantID uint, entryType string, amount float64) models.LedgerEntry {
	return models.LedgerEntry{
		ConsultantID: &consultantID,
		Type:         entryType,
		Amount:       amount,
		Status:       models.LedgerCompleted,
	}
}

func TestAvailableBalanceIsRunningSum(t *testing.T) {
	db := setupTestDB(t)

	require.Zero(t, mustBalance(t, db, 1))

	entries := []models.LedgerEntry{
		entry(1, models.LedgerConsultantEarning, 900),
		entry(1, models.LedgerConsultantEarning, 450),
		entry(1, models.LedgerWithdraw, -500),
		entry(1, models.LedgerWithdrawReversal, 500),
		entry(1, models.LedgerWithdraw, -350),
		// Another consultant's entries never bleed into the sum.
		entry(2, models.LedgerConsultantEarning, 9000),
	}
	for i := range entries {
		require.NoError(t, db.Create(&entries[i]).Error)
	}

	require.Equal(t, 1000.0, mustBalance(t, db, 1))
	require.Equal(t, 9000.0, mustBalance(t, db, 2))
}

func TestPlatformIncomeSumsAdminShare(t *testing.T) {
	db := setupTestDB(t)

	userID := uint(7)
	rows := []models.LedgerEntry{
		{UserID: &userID, Type: models.LedgerAdminIncome, Amount: 100, Status: models.LedgerCompleted},
		{UserID: &userID, Type: models.LedgerAdminIncome, Amount: 45.50, Status: models.LedgerCompleted},
		entry(1, models.LedgerConsultantEarning, 900),
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	income, err := PlatformIncome(db)
	require.NoError(t, err)
	require.Equal(t, 145.50, income)
}

func mustBalance(t *testing.T, db *gorm.DB, consultantID uint) float64 {
	t.Helper()

	balance, err := AvailableBalance(db, consultantID)
	require.NoError(t, err)
	return balance
}
