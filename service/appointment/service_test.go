package appointment

import (
	"testing"
	"time"

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

	err = db.AutoMigrate(
		&models.User{},
		&models.Consultant{},
		&models.Appointment{},
		&models.ChatRoom{},
		&models.Notification{},
		&models.LedgerEntry{},
	)
	require.NoError(t, err)

	return db
}

// seedParties creates a booking user and a consultant with their user account.
func seedParties(t *testing.T, db *gorm.DB) (user models.User, consultant models.Consultant) {
	t.Helper()

	user = models.User{FullName: "Maria Santos", Email: "maria@example.com", PasswordHash: "x", Role: models.RoleUser, Phone: "0917"}
	require.NoError(t, db.Create(&user).Error)

	consultantUser := models.User{FullName: "Dr. Reyes", Email: "reyes@example.com", PasswordHash: "x", Role: models.RoleConsultant, Phone: "0918"}
	require.NoError(t, db.Create(&consultantUser).Error)

	consultant = models.Consultant{UserID: consultantUser.ID, SessionFee: 1000, GcashNumber: "09181234567"}
	require.NoError(t, db.Create(&consultant).Error)

	return user, consultant
}

func bookPending(t *testing.T, db *gorm.DB, user models.User, consultant models.Consultant, at time.Time) *models.Appointment {
	t.Helper()

	appointment, err := Create(db, at.Add(-time.Hour), CreateParams{
		UserID:        user.ID,
		ConsultantID:  consultant.ID,
		AppointmentAt: at,
		SessionFee:    1000,
	})
	require.NoError(t, err)
	return appointment
}

func notificationCount(t *testing.T, db *gorm.DB, notifType string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("type = ?", notifType).Count(&count).Error)
	return count
}

func TestCreateValidation(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)
	now := time.Now()

	_, err := Create(db, now, CreateParams{
		UserID: user.ID, ConsultantID: consultant.ID,
		AppointmentAt: now.Add(-time.Hour), SessionFee: 1000,
	})
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = Create(db, now, CreateParams{
		UserID: user.ID, ConsultantID: consultant.ID,
		AppointmentAt: now.Add(time.Hour), SessionFee: 0,
	})
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = Create(db, now, CreateParams{
		UserID: user.ID, ConsultantID: 9999,
		AppointmentAt: now.Add(time.Hour), SessionFee: 1000,
	})
	require.ErrorIs(t, err, models.ErrNotFound)

	// Failed creates must not leave notification rows behind.
	require.Zero(t, notificationCount(t, db, models.NotifBookingRequest))
}

func TestCreateNotifiesConsultant(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)

	appointment := bookPending(t, db, user, consultant, time.Now().Add(24*time.Hour))
	require.Equal(t, models.AppointmentPending, appointment.Status)
	require.EqualValues(t, 1, notificationCount(t, db, models.NotifBookingRequest))

	var notif models.Notification
	require.NoError(t, db.Where("type = ?", models.NotifBookingRequest).First(&notif).Error)
	require.Equal(t, consultant.UserID, notif.RecipientID)
}

func TestAcceptProvisionsChatRoom(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)
	appointment := bookPending(t, db, user, consultant, time.Now().Add(24*time.Hour))

	accepted, room, err := Accept(db, time.Now(), appointment.ID, consultant.UserID)
	require.NoError(t, err)
	require.Equal(t, models.AppointmentAccepted, accepted.Status)
	require.NotNil(t, room)
	require.Equal(t, appointment.ID, room.AppointmentID)
	require.NotEmpty(t, room.ChannelID)

	var stored models.Appointment
	require.NoError(t, db.First(&stored, appointment.ID).Error)
	require.NotNil(t, stored.ChatRoomID)
	require.Equal(t, room.ID, *stored.ChatRoomID)

	require.EqualValues(t, 1, notificationCount(t, db, models.NotifBookingAccepted))
}

func TestDoubleAcceptConflicts(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)
	appointment := bookPending(t, db, user, consultant, time.Now().Add(24*time.Hour))

	_, _, err := Accept(db, time.Now(), appointment.ID, consultant.UserID)
	require.NoError(t, err)

	_, _, err = Accept(db, time.Now(), appointment.ID, consultant.UserID)
	require.ErrorIs(t, err, models.ErrStateConflict)

	// Only the winning accept may have a room and a notification.
	var rooms int64
	require.NoError(t, db.Model(&models.ChatRoom{}).Where("appointment_id = ?", appointment.ID).Count(&rooms).Error)
	require.EqualValues(t, 1, rooms)
	require.EqualValues(t, 1, notificationCount(t, db, models.NotifBookingAccepted))
}

func TestAcceptAfterWindowElapsed(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)
	at := time.Now().Add(24 * time.Hour)
	appointment := bookPending(t, db, user, consultant, at)

	_, _, err := Accept(db, at.Add(models.SessionWindow+time.Minute), appointment.ID, consultant.UserID)
	require.ErrorIs(t, err, models.ErrStateConflict)

	var stored models.Appointment
	require.NoError(t, db.First(&stored, appointment.ID).Error)
	require.Equal(t, models.AppointmentPending, stored.Status)
}

func TestAcceptRequiresAssignedConsultant(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)
	appointment := bookPending(t, db, user, consultant, time.Now().Add(24*time.Hour))

	_, _, err := Accept(db, time.Now(), appointment.ID, user.ID)
	require.ErrorIs(t, err, models.ErrForbidden)
}

func TestDeclineLeavesNoChatRoom(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)
	appointment := bookPending(t, db, user, consultant, time.Now().Add(24*time.Hour))

	declined, err := Decline(db, appointment.ID, consultant.UserID)
	require.NoError(t, err)
	require.Equal(t, models.AppointmentDeclined, declined.Status)

	var rooms int64
	require.NoError(t, db.Model(&models.ChatRoom{}).Count(&rooms).Error)
	require.Zero(t, rooms)
	require.EqualValues(t, 1, notificationCount(t, db, models.NotifBookingRejected))

	// Terminal: cannot accept after decline.
	_, _, err = Accept(db, time.Now(), appointment.ID, consultant.UserID)
	require.ErrorIs(t, err, models.ErrStateConflict)
}

func TestCancelBeforeStart(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)
	at := time.Now().Add(24 * time.Hour)
	appointment := bookPending(t, db, user, consultant, at)

	cancelled, err := Cancel(db, at.Add(-time.Hour), appointment.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, models.AppointmentCancelled, cancelled.Status)
	require.EqualValues(t, 1, notificationCount(t, db, models.NotifBookingCancelled))
}

func TestCancelAfterStartConflicts(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)
	at := time.Now().Add(24 * time.Hour)
	appointment := bookPending(t, db, user, consultant, at)

	_, err := Cancel(db, at, appointment.ID, user.ID)
	require.ErrorIs(t, err, models.ErrStateConflict)

	_, err = Cancel(db, at.Add(time.Hour), appointment.ID, user.ID)
	require.ErrorIs(t, err, models.ErrStateConflict)

	require.Zero(t, notificationCount(t, db, models.NotifBookingCancelled))
}

func TestCancelOnlyByBookingUser(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)
	at := time.Now().Add(24 * time.Hour)
	appointment := bookPending(t, db, user, consultant, at)

	_, err := Cancel(db, at.Add(-time.Hour), appointment.ID, consultant.UserID)
	require.ErrorIs(t, err, models.ErrForbidden)
}

func TestCompleteClosesChatRoom(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)
	appointment := bookPending(t, db, user, consultant, time.Now().Add(24*time.Hour))

	_, room, err := Accept(db, time.Now(), appointment.ID, consultant.UserID)
	require.NoError(t, err)

	completed, err := Complete(db, appointment.ID, consultant.UserID)
	require.NoError(t, err)
	require.Equal(t, models.AppointmentCompleted, completed.Status)

	var storedRoom models.ChatRoom
	require.NoError(t, db.First(&storedRoom, room.ID).Error)
	require.Equal(t, models.ChatRoomCompleted, storedRoom.Status)
	require.EqualValues(t, 1, notificationCount(t, db, models.NotifSessionCompleted))
}

func TestCompleteRequiresAccepted(t *testing.T) {
	db := setupTestDB(t)
	user, consultant := seedParties(t, db)
	appointment := bookPending(t, db, user, consultant, time.Now().Add(24*time.Hour))

	_, err := Complete(db, appointment.ID, consultant.UserID)
	require.ErrorIs(t, err, models.ErrStateConflict)
	require.Zero(t, notificationCount(t, db, models.NotifSessionCompleted))
}

func TestDeriveViewStatus(t *testing.T) {
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		status string
		now    time.Time
		want   string
	}{
		{"accepted before start", models.AppointmentAccepted, at.Add(-time.Hour), models.ViewUpcoming},
		{"accepted six hours in", models.AppointmentAccepted, at.Add(6 * time.Hour), models.ViewOngoing},
		{"accepted at window edge", models.AppointmentAccepted, at.Add(models.SessionWindow), models.ViewOngoing},
		{"accepted thirteen hours in", models.AppointmentAccepted, at.Add(13 * time.Hour), models.ViewPast},
		{"pending before start", models.AppointmentPending, at.Add(-time.Hour), models.ViewUpcoming},
		{"pending past window", models.AppointmentPending, at.Add(13 * time.Hour), models.ViewPast},
		{"cancelled ignores clock", models.AppointmentCancelled, at.Add(-48 * time.Hour), models.ViewCancelled},
		{"declined is past", models.AppointmentDeclined, at.Add(-time.Hour), models.ViewPast},
		{"completed is past", models.AppointmentCompleted, at.Add(time.Hour), models.ViewPast},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			appointment := &models.Appointment{Status: tc.status, AppointmentAt: at}
			require.Equal(t, tc.want, DeriveViewStatus(appointment, tc.now))
		})
	}
}
