package ledger

import (
	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"gorm.io/gorm"
)

// AvailableBalance derives a consultant's balance by summing their ledger
// entries. The balance is never kept in a counter column; re-deriving on every
// read is what keeps partial failures from drifting the number.
func AvailableBalance(db *gorm.DB, consultantID uint) (float64, error) {
	var balance float64
	err := db.Model(&models.LedgerEntry{}).
		Where("consultant_id = ?", consultantID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error
	return balance, err
}

// PlatformIncome sums the platform's share of every settled session.
func PlatformIncome(db *gorm.DB) (float64, error) {
	var income float64
	err := db.Model(&models.LedgerEntry{}).
		Where("type = ?", models.LedgerAdminIncome).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&income).Error
	return income, err
}
