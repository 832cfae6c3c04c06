package chat

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"github.com/konsulta-ph/Konsulta-server/cmd/utils"
	"github.com/konsulta-ph/Konsulta-server/service/payment"
	"gorm.io/gorm"
)

type ChatHandler struct {
	db *gorm.DB
}

func NewChatHandler(db *gorm.DB) *ChatHandler {
	return &ChatHandler{db: db}
}

func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	chatRouter := router.PathPrefix("/chats").Subrouter()

	chatRouter.HandleFunc("", utils.AuthMiddleware(h.GetMyRooms)).Methods("GET")
	chatRouter.HandleFunc("/{id}", utils.AuthMiddleware(h.GetRoom)).Methods("GET")
	chatRouter.HandleFunc("/{id}/read", utils.AuthMiddleware(h.MarkRead)).Methods("POST")
	chatRouter.HandleFunc("/{id}/last-message", utils.AuthMiddleware(h.UpdateLastMessage)).Methods("PATCH")
}

// GetMyRooms lists chat rooms where the caller is either party.
func (h *ChatHandler) GetMyRooms(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var consultantIDs []uint
	h.db.Model(&models.Consultant{}).Where("user_id = ?", callerID).Pluck("id", &consultantIDs)

	query := h.db.Preload("Appointment")
	if len(consultantIDs) > 0 {
		query = query.Where("user_id = ? OR consultant_id IN ?", callerID, consultantIDs)
	} else {
		query = query.Where("user_id = ?", callerID)
	}

	var rooms []models.ChatRoom
	if err := query.Order("last_message_at DESC").Find(&rooms).Error; err != nil {
		http.Error(w, "Error retrieving chat rooms", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rooms)
}

// GetRoom returns one room. For the booking user this re-checks the payment
// gate: an unpaid session answers 402 and the client opens the payment flow
// instead of the chat screen.
func (h *ChatHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	callerID, room, ok := h.loadRoomForCaller(w, r)
	if !ok {
		return
	}

	if room.UserID == callerID {
		paid, err := payment.HasPaid(h.db, room.UserID, room.ConsultantID, room.AppointmentID)
		if err != nil {
			http.Error(w, "Error checking payment status", http.StatusInternalServerError)
			return
		}
		if !paid {
			http.Error(w, "Session has not been paid for", http.StatusPaymentRequired)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

// MarkRead clears the unread flag on the caller's side of the room.
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	callerID, room, ok := h.loadRoomForCaller(w, r)
	if !ok {
		return
	}

	column := "consultant_unread"
	if room.UserID == callerID {
		column = "user_unread"
	}

	if err := h.db.Model(room).Update(column, false).Error; err != nil {
		http.Error(w, "Error updating chat room", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Chat room marked as read",
	})
}

// UpdateLastMessage records message metadata after the client has sent the
// message through the chat provider, and flags the other side unread.
func (h *ChatHandler) UpdateLastMessage(w http.ResponseWriter, r *http.Request) {
	callerID, room, ok := h.loadRoomForCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updates := map[string]interface{}{
		"last_message":    req.Message,
		"last_message_at": time.Now(),
	}
	if room.UserID == callerID {
		updates["consultant_unread"] = true
	} else {
		updates["user_unread"] = true
	}

	if err := h.db.Model(room).Updates(updates).Error; err != nil {
		http.Error(w, "Error updating chat room", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

// loadRoomForCaller fetches the room and verifies the caller is one of the
// two parties.
func (h *ChatHandler) loadRoomForCaller(w http.ResponseWriter, r *http.Request) (uint, *models.ChatRoom, bool) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, nil, false
	}

	vars := mux.Vars(r)
	roomID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid chat room ID", http.StatusBadRequest)
		return 0, nil, false
	}

	var room models.ChatRoom
	if err := h.db.First(&room, roomID).Error; err != nil {
		http.Error(w, "Chat room not found", http.StatusNotFound)
		return 0, nil, false
	}

	if room.UserID != callerID {
		var consultant models.Consultant
		if err := h.db.First(&consultant, room.ConsultantID).Error; err != nil ||
			consultant.UserID != callerID {
			http.Error(w, "Insufficient permissions", http.StatusForbidden)
			return 0, nil, false
		}
	}

	return callerID, &room, true
}
