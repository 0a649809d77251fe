package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"

	"github.com/jhoicas/loyverse-sri/internal/application/automation"
	"github.com/jhoicas/loyverse-sri/internal/application/billing"
	domainsri "github.com/jhoicas/loyverse-sri/internal/domain/sri"
	"github.com/jhoicas/loyverse-sri/internal/infrastructure/loyverse"
	infrapdf "github.com/jhoicas/loyverse-sri/internal/infrastructure/pdf"
	"github.com/jhoicas/loyverse-sri/internal/infrastructure/postgres"
	infrasri "github.com/jhoicas/loyverse-sri/internal/infrastructure/sri"
	"github.com/jhoicas/loyverse-sri/internal/infrastructure/sri/signer"
	httpRouter "github.com/jhoicas/loyverse-sri/internal/interfaces/http"
	"github.com/jhoicas/loyverse-sri/pkg/config"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		App:   cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Bool("auth", cfg.JWT.Secret != "").
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	txRunner := postgres.NewTxRunner(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool, txRunner)
	configRepo := postgres.NewConfigRepository(pool, txRunner)

	clock := clockwork.NewRealClock()
	validator := domainsri.NewValidator(clock)

	// Ciclo de la factura: clave de acceso → XML → XML-DSig → recepción → autorización
	keys := domainsri.NewAccessKeyGenerator(clock, nil, log)
	xmlBuilder := infrasri.NewXMLBuilderService(keys)
	signerSvc := signer.NewDigitalSignatureService(cfg.SRI.Canonicalization, log)
	soapClient := infrasri.NewSOAPClient(infrasri.Endpoints{
		ReceptionTest:     cfg.SRI.ReceptionURLTest,
		ReceptionProd:     cfg.SRI.ReceptionURLProd,
		AuthorizationTest: cfg.SRI.AuthorizationURLTest,
		AuthorizationProd: cfg.SRI.AuthorizationURLProd,
	}, cfg.SRI.Timeout, log)
	workflow := billing.NewWorkflow(
		invoiceRepo, configRepo, xmlBuilder, signerSvc, soapClient,
		clock, cfg.SRI.SettleDelay, log,
	)

	// POS: el token del emisor tiene prioridad sobre LOYVERSE_TOKEN
	loyverseClient := loyverse.NewClient(loyverse.Config{
		BaseURL:   cfg.Loyverse.BaseURL,
		Token:     cfg.Loyverse.Token,
		PageLimit: cfg.Loyverse.PageLimit,
		Timeout:   cfg.Loyverse.Timeout,
	}, log)
	sources := func(token string) billing.ReceiptSource {
		if token == "" {
			return loyverseClient
		}
		return loyverseClient.WithToken(token)
	}

	mapper := billing.NewReceiptMapper(clock, log)
	ingestUC := billing.NewIngestUseCase(
		invoiceRepo, configRepo, sources, mapper, validator, workflow,
		cfg.Scheduler.Concurrency, log,
	)
	scheduler := automation.NewScheduler(
		ingestUC, configRepo, clock,
		cfg.Scheduler.Interval, cfg.Scheduler.Lookback, log,
	)

	queryUC := billing.NewQueryUseCase(invoiceRepo)
	configUC := billing.NewConfigUseCase(configRepo, validator, clock)
	// PDF: representación impresa (RIDE) de la factura autorizada
	pdfUC := billing.NewPDFUseCase(invoiceRepo, configRepo, infrapdf.NewRIDEGenerator())

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Minute * 2, // un ciclo completo incluye la espera y dos llamadas SOAP
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Loyverse SRI API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "db": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Invoices:   queryUC,
		Processor:  workflow,
		RIDE:       pdfUC,
		Importer:   ingestUC,
		Config:     configUC,
		Automation: scheduler,
		JWTSecret:  cfg.JWT.Secret,
	})

	if startScheduler(ctx, cfg, configUC) {
		if err := scheduler.Start(ctx); err != nil {
			log.Error().Err(err).Msg("no se pudo iniciar la automatización")
		}
	}

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	scheduler.Stop()

	log.Info().Msg("aplicación detenida")
}

// startScheduler decide el arranque automático: SCHEDULER_ENABLED o auto_sync del emisor.
func startScheduler(ctx context.Context, cfg *config.Config, configs *billing.ConfigUseCase) bool {
	if cfg.Scheduler.Enabled {
		return true
	}
	issuer, err := configs.Get(ctx)
	return err == nil && issuer.AutoSync
}
