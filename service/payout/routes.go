package payout

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"github.com/konsulta-ph/Konsulta-server/cmd/utils"
	"github.com/konsulta-ph/Konsulta-server/service/notification"
	"github.com/konsulta-ph/Konsulta-server/service/realtime"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

type PayoutHandler struct {
	db       *gorm.DB
	notifier *notification.NotificationHandler
	hub      *realtime.Hub
}

func NewPayoutHandler(db *gorm.DB, notifier *notification.NotificationHandler, hub *realtime.Hub) *PayoutHandler {
	return &PayoutHandler{db: db, notifier: notifier, hub: hub}
}

func (h *PayoutHandler) RegisterRoutes(router *mux.Router) {
	payoutRouter := router.PathPrefix("/payouts").Subrouter()

	payoutRouter.HandleFunc("", utils.AuthMiddleware(h.RequestWithdrawal)).Methods("POST")
	payoutRouter.HandleFunc("/mine", utils.AuthMiddleware(h.GetMyPayouts)).Methods("GET")
	payoutRouter.HandleFunc("/pending", utils.RequireRole(models.RoleAdmin, h.GetPendingPayouts)).Methods("GET")
	payoutRouter.HandleFunc("/{id}/resolve", utils.RequireRole(models.RoleAdmin, h.ResolvePayout)).Methods("PATCH")
}

// RequestWithdrawal submits a withdrawal against the caller's ledger balance.
func (h *PayoutHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var withdrawalRequest struct {
		Amount      float64 `json:"amount"`
		GcashNumber string  `json:"gcash_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&withdrawalRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var consultant models.Consultant
	if err := h.db.Where("user_id = ?", callerID).First(&consultant).Error; err != nil {
		http.Error(w, "Consultant profile not found", http.StatusNotFound)
		return
	}

	gcashNumber := withdrawalRequest.GcashNumber
	if gcashNumber == "" {
		gcashNumber = consultant.GcashNumber
	}

	request, err := RequestWithdrawal(h.db, consultant.ID, withdrawalRequest.Amount, gcashNumber)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	h.notifyAdminsPush(request)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(request)
}

// ResolvePayout lets an admin approve or decline a pending request.
func (h *PayoutHandler) ResolvePayout(w http.ResponseWriter, r *http.Request) {
	adminID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	payoutID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid payout ID", http.StatusBadRequest)
		return
	}

	var resolution struct {
		Decision string `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&resolution); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	request, err := ResolveWithdrawal(h.db, uint(payoutID), resolution.Decision, adminID)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	var consultant models.Consultant
	if err := h.db.Preload("User").First(&consultant, request.ConsultantID).Error; err == nil {
		title := "Withdrawal approved"
		body := fmt.Sprintf("Your withdrawal of %.2f has been approved", request.Amount)
		if request.Status == models.PayoutDeclined {
			title = "Withdrawal declined"
			body = fmt.Sprintf("Your withdrawal of %.2f was declined and refunded to your balance", request.Amount)
		}

		h.notifier.PushToUser(consultant.UserID, title, body,
			map[string]interface{}{"payout_id": request.ID})
		h.hub.PublishToUser(consultant.UserID, realtime.Event{
			Topic:   realtime.TopicPayouts,
			Action:  request.Status,
			Payload: request,
		})

		if consultant.User != nil {
			go func(email, title, body string) {
				if err := sendPayoutEmail(email, title, body); err != nil {
					log.Printf("Error sending payout email: %v", err)
				}
			}(consultant.User.Email, title, body)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(request)
}

// GetMyPayouts lists the caller's own withdrawal requests, newest first.
func (h *PayoutHandler) GetMyPayouts(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var consultant models.Consultant
	if err := h.db.Where("user_id = ?", callerID).First(&consultant).Error; err != nil {
		http.Error(w, "Consultant profile not found", http.StatusNotFound)
		return
	}

	var requests []models.PayoutRequest
	if err := h.db.Where("consultant_id = ?", consultant.ID).
		Order("created_at DESC").Find(&requests).Error; err != nil {
		http.Error(w, "Error retrieving payout requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

// GetPendingPayouts is the admin queue of unresolved requests.
func (h *PayoutHandler) GetPendingPayouts(w http.ResponseWriter, r *http.Request) {
	var requests []models.PayoutRequest
	if err := h.db.Where("status = ?", models.PayoutPending).
		Preload("Consultant").Preload("Consultant.User").
		Order("created_at ASC").Find(&requests).Error; err != nil {
		http.Error(w, "Error retrieving payout requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

func (h *PayoutHandler) notifyAdminsPush(request *models.PayoutRequest) {
	var admins []models.User
	if err := h.db.Where("role = ?", models.RoleAdmin).Find(&admins).Error; err != nil {
		return
	}
	for _, admin := range admins {
		h.notifier.PushToUser(admin.ID, "New withdrawal request",
			fmt.Sprintf("A consultant requested a withdrawal of %.2f", request.Amount),
			map[string]interface{}{"payout_id": request.ID})
		h.hub.PublishToUser(admin.ID, realtime.Event{
			Topic:   realtime.TopicPayouts,
			Action:  "requested",
			Payload: request,
		})
	}
}

// sendPayoutEmail mails the resolution to the consultant.
func sendPayoutEmail(email, subject, body string) error {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPort := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")

	m := gomail.NewMessage()
	m.SetHeader("From", smtpUser)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	port, err := strconv.Atoi(smtpPort)
	if err != nil {
		return fmt.Errorf("invalid SMTP port: %v", err)
	}
	d := gomail.NewDialer(smtpHost, port, smtpUser, smtpPass)

	return d.DialAndSend(m)
}
