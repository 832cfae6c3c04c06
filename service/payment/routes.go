package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"github.com/konsulta-ph/Konsulta-server/cmd/utils"
	"github.com/konsulta-ph/Konsulta-server/service/notification"
	"github.com/konsulta-ph/Konsulta-server/service/realtime"
	"gorm.io/gorm"
)

type PaymentHandler struct {
	db       *gorm.DB
	notifier *notification.NotificationHandler
	hub      *realtime.Hub
}

func NewPaymentHandler(db *gorm.DB, notifier *notification.NotificationHandler, hub *realtime.Hub) *PaymentHandler {
	return &PaymentHandler{db: db, notifier: notifier, hub: hub}
}

func (h *PaymentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/appointments/{id}/paid", utils.AuthMiddleware(h.CheckPaid)).Methods("GET")
	router.HandleFunc("/appointments/{id}/pay", utils.AuthMiddleware(h.ConfirmPayment)).Methods("POST")
	router.HandleFunc("/payments/webhook", h.HandlePaymentWebhook).Methods("POST")
}

// CheckPaid is the payment gate. The mobile client calls it before opening the
// session screen; false routes the user into the payment flow instead.
func (h *PaymentHandler) CheckPaid(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var appointment models.Appointment
	if err := h.db.First(&appointment, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	paid, err := HasPaid(h.db, appointment.UserID, appointment.ConsultantID, appointment.ID)
	if err != nil {
		http.Error(w, "Error checking payment status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointment_id": appointment.ID,
		"paid":           paid,
	})
}

// ConfirmPayment settles a session fee reported paid by the client payment
// flow. The split always uses the fee frozen on the appointment, never a
// client-supplied amount.
func (h *PaymentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var appointment models.Appointment
	if err := h.db.First(&appointment, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}
	if appointment.UserID != callerID {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return
	}

	settlement, err := h.settleAndNotify(&appointment)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settlement)
}

// HandlePaymentWebhook processes the charge-success webhook from the payment
// provider. Signature-verified; converges on the same settlement path as the
// client confirmation so retried webhooks cannot double-credit.
func (h *PaymentHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("X-Paystack-Signature")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	mac := hmac.New(sha512.New, []byte(os.Getenv("PAYSTACK_SECRET_KEY")))
	mac.Write(body)
	expectedMAC := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(signature), []byte(expectedMAC)) {
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	var webhookPayload struct {
		Event string `json:"event"`
		Data  struct {
			Reference string  `json:"reference"`
			Status    string  `json:"status"`
			Amount    float64 `json:"amount"`
			Metadata  struct {
				AppointmentID uint `json:"appointment_id"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &webhookPayload); err != nil {
		http.Error(w, "Error parsing webhook payload", http.StatusBadRequest)
		return
	}

	// Only successful charges settle anything.
	if webhookPayload.Event != "charge.success" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var appointment models.Appointment
	if err := h.db.First(&appointment, webhookPayload.Data.Metadata.AppointmentID).Error; err != nil {
		log.Printf("Webhook for unknown appointment %d (reference %s)",
			webhookPayload.Data.Metadata.AppointmentID, webhookPayload.Data.Reference)
		// Return 200 anyway to avoid repeated webhook retries.
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.settleAndNotify(&appointment); err != nil {
		http.Error(w, "Error settling payment", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// settleAndNotify runs the revenue split and, on a first-time settlement,
// notifies the consultant that the session has been paid for.
func (h *PaymentHandler) settleAndNotify(appointment *models.Appointment) (*Settlement, error) {
	settlement, err := SettlePayment(h.db, appointment.ID, appointment.UserID,
		appointment.ConsultantID, appointment.SessionFee)
	if err != nil {
		return nil, err
	}
	if settlement.AlreadySettled {
		return settlement, nil
	}

	var consultant models.Consultant
	if err := h.db.First(&consultant, appointment.ConsultantID).Error; err == nil {
		if err := notification.Emit(h.db, consultant.UserID, models.RoleConsultant,
			models.NotifPaymentReceived,
			"Payment received",
			"A client has paid for their consultation session",
			notification.Refs{AppointmentID: &appointment.ID}); err != nil {
			log.Printf("Error emitting payment notification: %v", err)
		}
		h.notifier.PushToUser(consultant.UserID, "Payment received",
			"A client has paid for their consultation session",
			map[string]interface{}{"appointment_id": appointment.ID})
		h.hub.PublishToUser(consultant.UserID, realtime.Event{
			Topic:   realtime.TopicAppointments,
			Action:  "paid",
			Payload: appointment,
		})
	}

	return settlement, nil
}
