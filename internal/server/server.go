package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/havenlab/apiserver/config"
	"github.com/havenlab/apiserver/internal/db"
	"github.com/havenlab/apiserver/internal/events"
	"github.com/havenlab/apiserver/internal/handlers"
	"github.com/havenlab/apiserver/internal/identity"
	"github.com/havenlab/apiserver/internal/services"
	"github.com/havenlab/apiserver/internal/storage"
	"github.com/havenlab/apiserver/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server wraps the HTTP server, router and its connections.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mongo      *mongo.Database
	bus        *events.Bus
	logger     *zap.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mongoDB, err := db.OpenMongo(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	provider, err := identity.NewClient(cfg.Identity, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	bus, err := openEvents(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	archive, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if archive != nil {
		if err := archive.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, err
		}
	}

	userRepo := store.NewUserRepository(mongoDB)
	bookingRepo := store.NewBookingRepository(mongoDB)
	paymentRepo := store.NewPaymentRepository(mongoDB)
	roomRepo := store.NewRoomRepository(mongoDB)
	patientRepo := store.NewPatientRepository(dbConn)
	doctorRepo := store.NewDoctorRepository(dbConn)
	testRepo := store.NewLabTestRepository(dbConn)
	expenseRepo := store.NewExpenseRepository(dbConn)

	var receipts *services.ReceiptService
	if archive != nil {
		receipts = services.NewReceiptService(archive, logger)
	}

	syncService := services.NewSyncService(provider, userRepo, bus, logger)
	userService := services.NewUserService(provider, userRepo, logger)
	bookingService := services.NewBookingService(bookingRepo)
	ledgerService := services.NewLedgerService(bookingRepo, paymentRepo, bus, receipts, logger)
	roomService := services.NewRoomService(roomRepo)
	labService := services.NewLabService(patientRepo, doctorRepo, testRepo, expenseRepo)

	sessionMiddleware := handlers.RequireSession(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Group(func(r chi.Router) {
		r.Use(sessionMiddleware)
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, syncService, userService)
		})
		r.Route("/bookings", func(r chi.Router) {
			handlers.BookingRouter(r, bookingService)
		})
		r.Route("/payments", func(r chi.Router) {
			handlers.PaymentRouter(r, ledgerService)
		})
		r.Route("/rooms", func(r chi.Router) {
			handlers.RoomRouter(r, roomService)
		})
		r.Route("/lab", func(r chi.Router) {
			handlers.LabRouter(r, labService)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mongo:      mongoDB,
		bus:        bus,
		logger:     logger,
	}, nil
}

// openEvents builds the audit-event bus for the configured broker. An empty
// backend disables event publishing.
func openEvents(ctx context.Context, cfg config.EventsConfig) (*events.Bus, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err := events.NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return events.New(backend), nil
	case "pubsub":
		backend, err := events.NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		return events.New(backend), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// openStorage builds the receipt archive for the configured object store. An
// empty backend disables receipt archiving.
func openStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Archive, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		return storage.NewArchive(client), nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		return storage.NewArchive(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.mongo.Client().Disconnect(ctx)
		cancel()
	}
	if s.bus != nil {
		_ = s.bus.Close()
	}
	return s.httpServer.Close()
}
