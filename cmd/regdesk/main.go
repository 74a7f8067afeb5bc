package main

import (
	"regdesk/internal/notify"
	registrationshandler "regdesk/internal/registrations/handler"
	"regdesk/internal/registrations/ledger"
	"regdesk/internal/registrations/reaper"
	registrationsrepo "regdesk/internal/registrations/repository"
	"regdesk/internal/registrations/seatlock"
	registrationssvc "regdesk/internal/registrations/service"
	registrationsvalidator "regdesk/internal/registrations/validator"
	sessionshandler "regdesk/internal/sessions/handler"
	sessionsrepo "regdesk/internal/sessions/repository"
	sessionssvc "regdesk/internal/sessions/service"
	sessionsvalidator "regdesk/internal/sessions/validator"
	studentshandler "regdesk/internal/students/handler"
	studentsrepo "regdesk/internal/students/repository"
	studentssvc "regdesk/internal/students/service"
	studentsvalidator "regdesk/internal/students/validator"
	"regdesk/pkg/app"
	"regdesk/pkg/auth"
	"regdesk/pkg/config"
	"regdesk/pkg/kafka"
	kafkaconfig "regdesk/pkg/kafka/config"
	kafkamiddleware "regdesk/pkg/kafka/middleware"
)

const ServiceName = "regdesk"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting registration desk service")

	notifier, receipts, closeProducers := initNotify(cfg)

	sessionRepo := sessionsrepo.NewMongoSessionRepository(cfg)
	studentRepo := studentsrepo.NewMongoStudentRepository(cfg)
	registrationRepo := registrationsrepo.NewMongoRegistrationRepository(cfg)
	lockRepo := registrationsrepo.NewMongoSessionLockRepository(cfg)

	seatLedger := ledger.New(registrationRepo, sessionRepo, cfg.Log)
	seats := seatlock.NewManager(cfg, lockRepo, registrationRepo, seatLedger, cfg.Log)

	studentService := studentssvc.NewStudentService(
		studentRepo,
		registrationRepo,
		studentsvalidator.NewStudentValidator(cfg.Log),
		cfg,
	)
	sessionService := sessionssvc.NewSessionService(
		sessionRepo,
		registrationRepo,
		seatLedger,
		sessionsvalidator.NewSessionValidator(cfg.Log),
		cfg,
	)
	registrationService := registrationssvc.NewRegistrationService(
		registrationRepo,
		sessionRepo,
		studentService,
		seats,
		seatLedger,
		registrationsvalidator.NewRegistrationValidator(cfg.Log),
		notifier,
		receipts,
		cfg,
	)

	holdReaper := reaper.New(seats, cfg.ReaperInterval, cfg.RequestTimeout, cfg.Log)
	holdReaper.Start()

	authorizer := auth.NewTokenAuthorizer(cfg.AdminToken)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg,
		registrationshandler.NewRegistrationHandler(registrationService, seats, authorizer, cfg.Log),
		sessionshandler.NewSessionHandler(sessionService, authorizer, cfg.Log),
		studentshandler.NewStudentHandler(studentService, authorizer, cfg.Log),
	)
	serverApp.OnShutdown("seat hold reaper", holdReaper.Stop)
	serverApp.OnShutdown("kafka producers", closeProducers)
	serverApp.OnShutdown("mongo client", cfg.Client.GracefulShutdown)
	serverApp.Run()
}

// initNotify wires the event publishers. Without brokers configured the
// service falls back to logging events instead of refusing to start.
func initNotify(cfg *config.Config) (notify.Notifier, notify.ReceiptRequester, func()) {
	kafkaCfg := kafkaconfig.Load()
	if !kafkaCfg.Enabled() {
		cfg.Log.Info("Kafka brokers not configured, lifecycle events will be logged only")
		fallback := notify.NewLogNotifier(cfg.Log)
		return fallback, fallback, func() {}
	}

	notifications, err := kafka.NewProducer(kafkaCfg, cfg.NotificationsTopic, cfg.NotificationsTopic+".dlq")
	if err != nil {
		cfg.Log.Fatal("Failed to create notifications producer", "error", err)
	}
	receipts, err := kafka.NewProducer(kafkaCfg, cfg.ReceiptsTopic, cfg.ReceiptsTopic+".dlq")
	if err != nil {
		cfg.Log.Fatal("Failed to create receipts producer", "error", err)
	}
	notifications.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	receipts.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))

	notifier := notify.NewKafkaNotifier(notifications, receipts, cfg.Log)
	closeProducers := func() {
		if err := notifications.Close(); err != nil {
			cfg.Log.Error("Failed to close notifications producer", "error", err)
		}
		if err := receipts.Close(); err != nil {
			cfg.Log.Error("Failed to close receipts producer", "error", err)
		}
	}
	return notifier, notifier, closeProducers
}
