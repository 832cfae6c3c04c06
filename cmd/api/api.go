package api

import (
	"log"
	"net/http"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/konsulta-ph/Konsulta-server/service/appointment"
	"github.com/konsulta-ph/Konsulta-server/service/chat"
	"github.com/konsulta-ph/Konsulta-server/service/dashboard"
	"github.com/konsulta-ph/Konsulta-server/service/ledger"
	"github.com/konsulta-ph/Konsulta-server/service/notification"
	"github.com/konsulta-ph/Konsulta-server/service/payment"
	"github.com/konsulta-ph/Konsulta-server/service/payout"
	"github.com/konsulta-ph/Konsulta-server/service/realtime"
	"github.com/konsulta-ph/Konsulta-server/service/user"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	hub := realtime.NewHub()
	go hub.Run()

	notificationHandler := notification.NewNotificationHandler(s.db)
	notificationHandler.RegisterRoutes(subrouter)

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	appointmentHandler := appointment.NewAppointmentHandler(s.db, notificationHandler, hub)
	appointmentHandler.RegisterRoutes(subrouter)

	paymentHandler := payment.NewPaymentHandler(s.db, notificationHandler, hub)
	paymentHandler.RegisterRoutes(subrouter)

	payoutHandler := payout.NewPayoutHandler(s.db, notificationHandler, hub)
	payoutHandler.RegisterRoutes(subrouter)

	ledgerHandler := ledger.NewLedgerHandler(s.db)
	ledgerHandler.RegisterRoutes(subrouter)

	chatHandler := chat.NewChatHandler(s.db)
	chatHandler.RegisterRoutes(subrouter)

	dashboardHandler := dashboard.NewDashboardHandler(s.db)
	dashboardHandler.RegisterRoutes(subrouter)

	realtimeHandler := realtime.NewRealtimeHandler(s.db, hub)
	realtimeHandler.RegisterRoutes(router)

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, corsHandler(router))
}
