package ledger

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"github.com/konsulta-ph/Konsulta-server/cmd/utils"
	"gorm.io/gorm"
)

// EntryFilter represents all possible filters for ledger statements
type EntryFilter struct {
	Type      string
	MinAmount float64
	MaxAmount float64
	StartDate time.Time
	EndDate   time.Time
}

// PaginatedResponse represents the standard paginated API response structure
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
	Error      string         `json:"error,omitempty"`
}

// PaginationMeta contains pagination metadata
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	HasPrevious bool  `json:"has_previous"`
	HasNext     bool  `json:"has_next"`
}

type LedgerHandler struct {
	db *gorm.DB
}

func NewLedgerHandler(db *gorm.DB) *LedgerHandler {
	return &LedgerHandler{db: db}
}

func (h *LedgerHandler) RegisterRoutes(router *mux.Router) {
	ledgerRouter := router.PathPrefix("/ledger").Subrouter()

	ledgerRouter.HandleFunc("/consultants/{consultantId}/balance", utils.AuthMiddleware(h.GetBalance)).Methods("GET")
	ledgerRouter.HandleFunc("/consultants/{consultantId}/entries", utils.AuthMiddleware(h.GetStatement)).Methods("GET")
}

// ParsePaginationParams extracts and validates pagination parameters from request
func ParsePaginationParams(r *http.Request) (int, int, error) {
	query := r.URL.Query()

	page := 1
	if query.Get("page") != "" {
		parsedPage, err := strconv.Atoi(query.Get("page"))
		if err != nil || parsedPage < 1 {
			return 0, 0, err
		}
		page = parsedPage
	}

	perPage := 10
	if query.Get("per_page") != "" {
		parsedPerPage, err := strconv.Atoi(query.Get("per_page"))
		if err != nil || parsedPerPage < 1 {
			return 0, 0, err
		}
		if parsedPerPage > 100 {
			perPage = 100
		} else {
			perPage = parsedPerPage
		}
	}

	return page, perPage, nil
}

// GetBalance returns the derived available balance for a consultant. Only the
// consultant themselves or an admin may read it.
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	consultantID, ok := h.authorizeConsultantAccess(w, r)
	if !ok {
		return
	}

	balance, err := AvailableBalance(h.db, consultantID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to compute balance")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"consultant_id":     consultantID,
		"available_balance": balance,
	})
}

// GetStatement lists a consultant's ledger entries with filters and pagination.
func (h *LedgerHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	consultantID, ok := h.authorizeConsultantAccess(w, r)
	if !ok {
		return
	}

	var filter EntryFilter
	var err error
	queryParams := r.URL.Query()

	filter.Type = queryParams.Get("type")

	if minAmountStr := queryParams.Get("min_amount"); minAmountStr != "" {
		filter.MinAmount, err = strconv.ParseFloat(minAmountStr, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid min_amount parameter")
			return
		}
	}

	if maxAmountStr := queryParams.Get("max_amount"); maxAmountStr != "" {
		filter.MaxAmount, err = strconv.ParseFloat(maxAmountStr, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid max_amount parameter")
			return
		}
	}

	layout := "2006-01-02"
	if startDateStr := queryParams.Get("start_date"); startDateStr != "" {
		filter.StartDate, err = time.Parse(layout, startDateStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid start_date format. Use YYYY-MM-DD")
			return
		}
	}

	if endDateStr := queryParams.Get("end_date"); endDateStr != "" {
		filter.EndDate, err = time.Parse(layout, endDateStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid end_date format. Use YYYY-MM-DD")
			return
		}
	}

	query := h.db.Model(&models.LedgerEntry{}).Where("consultant_id = ?", consultantID)

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.MinAmount != 0 {
		query = query.Where("amount >= ?", filter.MinAmount)
	}
	if filter.MaxAmount != 0 {
		query = query.Where("amount <= ?", filter.MaxAmount)
	}
	if !filter.StartDate.IsZero() {
		query = query.Where("created_at >= ?", filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		// Add one day to include the end date fully
		endDatePlusDay := filter.EndDate.Add(24 * time.Hour)
		query = query.Where("created_at < ?", endDatePlusDay)
	}

	page, perPage, err := ParsePaginationParams(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}
	offset := (page - 1) * perPage

	var totalItems int64
	query.Count(&totalItems)

	var entries []models.LedgerEntry
	result := query.Order("created_at DESC").Limit(perPage).Offset(offset).Find(&entries)
	if result.Error != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve ledger entries")
		return
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(perPage)))
	paginationMeta := PaginationMeta{
		CurrentPage: page,
		PerPage:     perPage,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasPrevious: page > 1,
		HasNext:     page < totalPages,
	}

	respondWithJSON(w, http.StatusOK, PaginatedResponse{
		Data:       entries,
		Pagination: paginationMeta,
	})
}

// authorizeConsultantAccess parses the consultant id from the path and checks
// the caller is that consultant's user or an admin.
func (h *LedgerHandler) authorizeConsultantAccess(w http.ResponseWriter, r *http.Request) (uint, bool) {
	vars := mux.Vars(r)
	consultantID, err := strconv.ParseUint(vars["consultantId"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid consultant ID")
		return 0, false
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, false
	}
	role, _ := utils.GetRoleFromContext(r.Context())

	if role != models.RoleAdmin {
		var consultant models.Consultant
		if err := h.db.First(&consultant, consultantID).Error; err != nil {
			respondWithError(w, http.StatusNotFound, "Consultant not found")
			return 0, false
		}
		if consultant.UserID != callerID {
			respondWithError(w, http.StatusForbidden, "Insufficient permissions")
			return 0, false
		}
	}

	return uint(consultantID), true
}

// Helper function to respond with an error
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, PaginatedResponse{Error: message})
}

// Helper function to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
