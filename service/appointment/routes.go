package appointment

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"github.com/konsulta-ph/Konsulta-server/cmd/utils"
	"github.com/konsulta-ph/Konsulta-server/service/chat"
	"github.com/konsulta-ph/Konsulta-server/service/notification"
	"github.com/konsulta-ph/Konsulta-server/service/realtime"
	"gorm.io/gorm"
)

type AppointmentHandler struct {
	db       *gorm.DB
	notifier *notification.NotificationHandler
	hub      *realtime.Hub
}

func NewAppointmentHandler(db *gorm.DB, notifier *notification.NotificationHandler, hub *realtime.Hub) *AppointmentHandler {
	return &AppointmentHandler{db: db, notifier: notifier, hub: hub}
}

func (h *AppointmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/appointments/book", utils.AuthMiddleware(h.BookAppointment)).Methods("POST")
	router.HandleFunc("/appointments", utils.RequireRole(models.RoleAdmin, h.GetAllAppointments)).Methods("GET")
	router.HandleFunc("/appointments/{id}", utils.AuthMiddleware(h.GetAppointment)).Methods("GET")
	router.HandleFunc("/appointments/{id}/accept", utils.AuthMiddleware(h.AcceptAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/{id}/decline", utils.AuthMiddleware(h.DeclineAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/{id}/cancel", utils.AuthMiddleware(h.CancelAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/{id}/complete", utils.AuthMiddleware(h.CompleteAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/user/{userId}", utils.AuthMiddleware(h.GetUserAppointments)).Methods("GET")
	router.HandleFunc("/appointments/consultant/{consultantId}", utils.AuthMiddleware(h.GetConsultantAppointments)).Methods("GET")
}

// appointmentView decorates a stored appointment with its derived display
// status, recomputed on every read.
type appointmentView struct {
	models.Appointment
	ViewStatus string `json:"view_status"`
}

func toView(appointment models.Appointment, now time.Time) appointmentView {
	return appointmentView{
		Appointment: appointment,
		ViewStatus:  DeriveViewStatus(&appointment, now),
	}
}

func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var bookingRequest struct {
		ConsultantID  uint    `json:"consultant_id"`
		AppointmentAt string  `json:"appointment_at"`
		Notes         string  `json:"notes"`
		SessionFee    float64 `json:"session_fee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&bookingRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	appointmentAt, err := time.Parse(time.RFC3339, bookingRequest.AppointmentAt)
	if err != nil {
		http.Error(w, "Invalid appointment_at format. Use RFC3339", http.StatusBadRequest)
		return
	}

	// Default to the consultant's listed fee when the client sends none.
	if bookingRequest.SessionFee == 0 {
		var consultant models.Consultant
		if err := h.db.First(&consultant, bookingRequest.ConsultantID).Error; err == nil {
			bookingRequest.SessionFee = consultant.SessionFee
		}
	}

	appointment, err := Create(h.db, time.Now(), CreateParams{
		UserID:        userID,
		ConsultantID:  bookingRequest.ConsultantID,
		AppointmentAt: appointmentAt,
		Notes:         bookingRequest.Notes,
		SessionFee:    bookingRequest.SessionFee,
	})
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	h.notifyConsultant(appointment, "New booking request", "You have a new consultation request")
	h.hub.PublishToUser(appointment.UserID, realtime.Event{
		Topic:   realtime.TopicAppointments,
		Action:  "created",
		Payload: appointment,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toView(*appointment, time.Now()))
}

func (h *AppointmentHandler) AcceptAppointment(w http.ResponseWriter, r *http.Request) {
	callerID, appointmentID, ok := h.callerAndID(w, r)
	if !ok {
		return
	}

	appointment, room, err := Accept(h.db, time.Now(), appointmentID, callerID)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	// Stream channel mirrors the committed room; failures only lose chat UI,
	// never the booking itself.
	go chat.CreateStreamChannel(room, callerID)

	h.notifier.PushToUser(appointment.UserID, "Booking accepted",
		"Your consultation request has been accepted",
		map[string]interface{}{"appointment_id": appointment.ID})
	h.hub.PublishToUser(appointment.UserID, realtime.Event{
		Topic:   realtime.TopicAppointments,
		Action:  "accepted",
		Payload: appointment,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointment": toView(*appointment, time.Now()),
		"chat_room":   room,
	})
}

func (h *AppointmentHandler) DeclineAppointment(w http.ResponseWriter, r *http.Request) {
	callerID, appointmentID, ok := h.callerAndID(w, r)
	if !ok {
		return
	}

	appointment, err := Decline(h.db, appointmentID, callerID)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	h.notifier.PushToUser(appointment.UserID, "Booking declined",
		"Your consultation request was declined",
		map[string]interface{}{"appointment_id": appointment.ID})
	h.hub.PublishToUser(appointment.UserID, realtime.Event{
		Topic:   realtime.TopicAppointments,
		Action:  "declined",
		Payload: appointment,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toView(*appointment, time.Now()))
}

func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	callerID, appointmentID, ok := h.callerAndID(w, r)
	if !ok {
		return
	}

	appointment, err := Cancel(h.db, time.Now(), appointmentID, callerID)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	h.notifyConsultant(appointment, "Booking cancelled",
		"A booked consultation has been cancelled by the client")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toView(*appointment, time.Now()))
}

func (h *AppointmentHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	callerID, appointmentID, ok := h.callerAndID(w, r)
	if !ok {
		return
	}

	appointment, err := Complete(h.db, appointmentID, callerID)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	h.notifier.PushToUser(appointment.UserID, "Session completed",
		"Your consultation session has been marked as completed",
		map[string]interface{}{"appointment_id": appointment.ID})
	h.hub.PublishToUser(appointment.UserID, realtime.Event{
		Topic:   realtime.TopicAppointments,
		Action:  "completed",
		Payload: appointment,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toView(*appointment, time.Now()))
}

// GetAppointment retrieves a specific appointment by ID
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var appointment models.Appointment
	if err := h.db.Preload("User").Preload("Consultant").First(&appointment, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toView(appointment, time.Now()))
}

// GetAllAppointments is the admin listing with status and date filters.
func (h *AppointmentHandler) GetAllAppointments(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Appointment{}).Preload("User").Preload("Consultant")

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if date := r.URL.Query().Get("date"); date != "" {
		query = query.Where("DATE(appointment_at) = ?", date)
	}

	var total int64
	query.Count(&total)

	var appointments []models.Appointment
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("appointment_at DESC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	h.writeAppointmentPage(w, appointments, total, page, pageSize)
}

// GetUserAppointments retrieves all appointments booked by a specific user
func (h *AppointmentHandler) GetUserAppointments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Appointment{}).Where("user_id = ?", userID).
		Preload("Consultant")

	var total int64
	query.Count(&total)

	var appointments []models.Appointment
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("appointment_at DESC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	h.writeAppointmentPage(w, appointments, total, page, pageSize)
}

// GetConsultantAppointments retrieves all appointments for a specific consultant
func (h *AppointmentHandler) GetConsultantAppointments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	consultantID, err := strconv.ParseUint(vars["consultantId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid consultant ID", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Appointment{}).Where("consultant_id = ?", consultantID).
		Preload("User")

	var total int64
	query.Count(&total)

	var appointments []models.Appointment
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("appointment_at DESC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	h.writeAppointmentPage(w, appointments, total, page, pageSize)
}

func (h *AppointmentHandler) writeAppointmentPage(w http.ResponseWriter, appointments []models.Appointment, total int64, page, pageSize int) {
	now := time.Now()
	views := make([]appointmentView, 0, len(appointments))
	for _, appointment := range appointments {
		views = append(views, toView(appointment, now))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointments": views,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
		"total_pages":  (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *AppointmentHandler) callerAndID(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, 0, false
	}

	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return 0, 0, false
	}
	return callerID, uint(appointmentID), true
}

// notifyConsultant resolves the consultant's user account and pushes to it.
func (h *AppointmentHandler) notifyConsultant(appointment *models.Appointment, title, body string) {
	var consultant models.Consultant
	if err := h.db.First(&consultant, appointment.ConsultantID).Error; err != nil {
		return
	}
	h.notifier.PushToUser(consultant.UserID, title, body,
		map[string]interface{}{"appointment_id": appointment.ID})
	h.hub.PublishToUser(consultant.UserID, realtime.Event{
		Topic:   realtime.TopicAppointments,
		Action:  appointment.Status,
		Payload: appointment,
	})
}
