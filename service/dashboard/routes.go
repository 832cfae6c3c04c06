package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"github.com/konsulta-ph/Konsulta-server/cmd/utils"
	"github.com/konsulta-ph/Konsulta-server/service/ledger"
	"gorm.io/gorm"
)

type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

type DashboardStats struct {
	TotalUsers        int64   `json:"total_users"`
	TotalConsultants  int64   `json:"total_consultants"`
	TotalAppointments int64   `json:"total_appointments"`
	PendingPayouts    int64   `json:"pending_payouts"`
	GrossVolume       float64 `json:"gross_volume"`
	PlatformIncome    float64 `json:"platform_income"`
}

func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	dashboardRouter := router.PathPrefix("/dashboard").Subrouter()
	dashboardRouter.HandleFunc("/stats", utils.RequireRole(models.RoleAdmin, h.GetDashboardStats)).Methods("GET")
}

// GetDashboardStats aggregates platform totals. All money figures are ledger
// sums, so they always agree with what the statement endpoints report.
func (h *DashboardHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	var stats DashboardStats

	h.db.Model(&models.User{}).Where("role = ?", models.RoleUser).Count(&stats.TotalUsers)
	h.db.Model(&models.Consultant{}).Count(&stats.TotalConsultants)
	h.db.Model(&models.Appointment{}).Count(&stats.TotalAppointments)
	h.db.Model(&models.PayoutRequest{}).Where("status = ?", models.PayoutPending).Count(&stats.PendingPayouts)

	income, err := ledger.PlatformIncome(h.db)
	if err != nil {
		http.Error(w, "Failed to compute platform income", http.StatusInternalServerError)
		return
	}
	stats.PlatformIncome = income

	var earnings float64
	if err := h.db.Model(&models.LedgerEntry{}).
		Where("type = ?", models.LedgerConsultantEarning).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&earnings).Error; err != nil {
		http.Error(w, "Failed to compute gross volume", http.StatusInternalServerError)
		return
	}
	stats.GrossVolume = earnings + income

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
