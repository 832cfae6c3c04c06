package chat

import (
	"context"
	"fmt"
	"log"
	"os"

	stream_chat "github.com/GetStream/stream-chat-go/v5"
	"github.com/google/uuid"
	"github.com/konsulta-ph/Konsulta-server/cmd/models"
	"gorm.io/gorm"
)

// Provision creates the chat room for an accepted appointment inside the
// caller's transaction. Keyed on the appointment id so a retried accept finds
// the existing room instead of creating a second one.
func Provision(tx *gorm.DB, appointment *models.Appointment) (*models.ChatRoom, error) {
	room := models.ChatRoom{
		AppointmentID: appointment.ID,
		UserID:        appointment.UserID,
		ConsultantID:  appointment.ConsultantID,
		Status:        models.ChatRoomOngoing,
		ChannelID:     fmt.Sprintf("apt-%s", uuid.New().String()),
	}
	if err := tx.Where("appointment_id = ?", appointment.ID).
		FirstOrCreate(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateStreamChannel mirrors the room into Stream Chat so the mobile client
// can attach with the token minted at login. Best-effort: the booking
// transition has already committed when this runs.
func CreateStreamChannel(room *models.ChatRoom, consultantUserID uint) {
	apiKey := os.Getenv("STREAM_API_KEY")
	apiSecret := os.Getenv("STREAM_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		return
	}

	client, err := stream_chat.NewClient(apiKey, apiSecret)
	if err != nil {
		log.Printf("Error initializing Stream client: %v", err)
		return
	}

	members := []string{
		fmt.Sprintf("%d", room.UserID),
		fmt.Sprintf("%d", consultantUserID),
	}
	creator := fmt.Sprintf("%d", room.UserID)
	if _, err := client.CreateChannel(context.Background(), "messaging", room.ChannelID, creator, &stream_chat.ChannelRequest{
		Members: members,
	}); err != nil {
		log.Printf("Error creating Stream channel %s: %v", room.ChannelID, err)
	}
}
