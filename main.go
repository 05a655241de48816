package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"form-relay/pkg/api"
	"form-relay/pkg/clients/pipedrive"
	"form-relay/pkg/clients/recaptcha"
	"form-relay/pkg/config"
	"form-relay/pkg/logging"
	"form-relay/pkg/mapping"
	"form-relay/pkg/services"
	"form-relay/pkg/storage/backup"
)

const shutdownTimeout = 10 * time.Second

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "form-relay",
	Short: "Relay website form submissions to a backup store and the CRM",
	Long: `form-relay receives website form posts, checks the reCAPTCHA token,
maps the fields to a canonical contact record, backs up the raw submission and
links a contact, a lead and a note in Pipedrive.

Run without arguments to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Error loading .env file: %v", err)
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogDevelopment)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var checkFormsCmd = &cobra.Command{
	Use:   "check-forms [file]",
	Short: "Validate a forms file and list the forms it maps",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.FormsFile
		if len(args) == 1 {
			path = args[0]
		}
		table, err := mapping.LoadFile(path)
		if err != nil {
			return err
		}
		for _, name := range table.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var redriveCmd = &cobra.Command{
	Use:   "redrive",
	Short: "Run one pass re-syncing backed up submissions to the CRM",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.store.Close()

		if app.redrive == nil {
			return fmt.Errorf("backup driver %q does not track sync status", cfg.BackupDriver)
		}
		synced, err := app.redrive.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d submissions\n", synced)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, checkFormsCmd, redriveCmd)
}

// app holds the wired services shared by serve and redrive
type app struct {
	forms      *mapping.Registry
	store      backup.Store
	submission services.SubmissionService
	redrive    *services.RedriveService
}

func newApp() (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	table, err := mapping.LoadFile(cfg.FormsFile)
	if err != nil {
		return nil, err
	}
	forms := mapping.NewRegistry(table)

	store, err := backup.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error opening backup store: %w", err)
	}

	// Initialize API clients
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	spam := recaptcha.NewClient(cfg.RecaptchaSecret, logger,
		recaptcha.WithVerifyURL(cfg.RecaptchaVerifyURL),
		recaptcha.WithMinScore(cfg.RecaptchaMinScore),
		recaptcha.WithHTTPClient(httpClient),
	)
	crm := pipedrive.NewClient(cfg.PipedriveAPIToken, cfg.PipedriveBaseURL, httpClient, logger)

	// Initialize services
	syncer := services.NewCRMSyncService(crm, services.CRMSettings{
		OwnerID:         cfg.CRMOwnerID,
		PersonVisibleTo: cfg.CRMPersonVisibleTo,
		LeadVisibleTo:   cfg.CRMLeadVisibleTo,
	}, logger)

	a := &app{
		forms:      forms,
		store:      store,
		submission: services.NewSubmissionService(forms, spam, store, syncer, logger),
	}
	if redriver, ok := store.(backup.Redriver); ok {
		a.redrive = services.NewRedriveService(redriver, forms, syncer, cfg.RedriveMinAge, cfg.RedriveMaxAttempts, logger)
	}
	return a, nil
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.store.Close()
	logger.Info("Loaded forms", zap.Strings("forms", a.forms.Current().Names()))

	if cfg.FormsWatch {
		if err := mapping.Watch(ctx, cfg.FormsFile, a.forms, logger); err != nil {
			logger.Warn("Forms hot reload disabled", zap.Error(err))
		}
	}

	if cfg.RedriveSchedule != "" {
		if a.redrive == nil {
			logger.Warn("Redrive schedule ignored, backup driver does not track sync status",
				zap.String("driver", cfg.BackupDriver))
		} else {
			job, err := services.StartRedriveJob(cfg.RedriveSchedule, a.redrive)
			if err != nil {
				return err
			}
			defer func() { <-job.Stop().Done() }()
			logger.Info("Redrive job scheduled", zap.String("schedule", cfg.RedriveSchedule))
		}
	}

	gin.SetMode(cfg.GinMode)
	handlers := api.NewHandlers(a.submission, api.Options{
		TokenField:       cfg.RecaptchaTokenField,
		FallbackToSource: cfg.FormFallbackToSource,
		StatusPerKind:    cfg.StatusPerKind,
	}, logger)
	router := api.NewRouter(handlers, cfg.CORSAllowedOrigins, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
