package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-donate/internal/config"
	"go-donate/internal/database"
	"go-donate/internal/donation"
	"go-donate/internal/handlers"
	"go-donate/internal/logging"
	"go-donate/internal/mailer"
	"go-donate/internal/models"
	"go-donate/internal/notification/telegram"
	"go-donate/internal/payment"
	"go-donate/internal/payment/mpgs"
	"go-donate/internal/scheduler"
	"go-donate/internal/websocket"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:     "go-donate",
		Short:   "Donation backend with hosted card checkout",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file to load environment variables from")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the stale session sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and seed reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := database.InitDB(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Printf("Database ready at %s\n", cfg.DatabaseURL)
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var username, password, email string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || len(password) < 8 {
				return errors.New("--username is required and --password must be at least 8 characters")
			}
			cfg := config.Load()
			db, err := database.InitDB(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			user := &models.User{Username: username, Password: password, Email: email, Role: models.RoleAdmin}
			if err := db.CreateUser(cmd.Context(), user); err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Printf("Admin %q created\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password")
	cmd.Flags().StringVar(&email, "email", "", "admin email")

	return cmd
}

func runServe(parent context.Context) error {
	printBanner()

	// Load configuration
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.JWTSecretGenerated {
		logger.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.InitDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized", zap.String("path", cfg.DatabaseURL))

	created, err := db.EnsureDefaultAdmin(ctx, cfg.AdminUser, cfg.AdminPass)
	if err != nil {
		return err
	}
	if created {
		logger.Warn("Default admin account created, change its password", zap.String("username", cfg.AdminUser))
	}

	// Initialize payment gateway
	router := payment.NewCredentialRouter(cfg.Credentials())
	if len(router.Currencies()) == 0 {
		logger.Warn("No merchant credentials configured, every donation will be rejected")
	}
	gateway := mpgs.New(mpgs.Config{
		BaseURL:      cfg.MPGSBaseURL,
		APIVersion:   cfg.MPGSAPIVersion,
		MerchantName: cfg.MPGSMerchantName,
		Timeout:      cfg.MPGSTimeout,
	}, logger.Named("mpgs"))
	logger.Info("Payment gateway configured",
		zap.String("base_url", cfg.MPGSBaseURL),
		zap.Strings("currencies", router.Currencies()),
	)

	// Initialize Mailer; an empty host triggers mock mode
	mailService := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Inbox:    cfg.ContactInbox,
	}, logger.Named("mailer"))

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger.Named("ws"))
	go wsHub.Run(ctx)

	donations := donation.NewService(db, gateway, router, donation.Config{
		AppURL:    cfg.AppURL + config.RoutePrefix,
		ReturnURL: cfg.ReturnURL,
	}, logger.Named("donation"))

	// Staff alerts are optional
	tgClient := telegram.New(cfg.TelegramToken, cfg.TelegramChatID, logger.Named("telegram"))
	defer tgClient.Wait()
	events := donation.Publishers{wsHub}
	if tgClient.Enabled() {
		events = append(events, tgClient)
		logger.Info("Telegram donation alerts enabled")
	}

	reconciler := donation.NewReconciler(db, gateway, router, mailService, events, donation.RedirectConfig{
		SuccessURL: cfg.PaymentSuccessURL,
		FailureURL: cfg.PaymentFailureURL,
	}, logger.Named("reconcile"))
	defer reconciler.Wait()

	// Initialize Scheduler
	if cfg.ReconcileInterval > 0 {
		sched := scheduler.New(db, reconciler, scheduler.Config{
			Interval:   cfg.ReconcileInterval,
			StaleAfter: cfg.ReconcileStaleAfter,
			MaxAge:     cfg.ReconcileMaxAge,
		}, logger.Named("scheduler"))
		sched.Start(ctx)
		logger.Info("Stale session sweep started", zap.Duration("interval", cfg.ReconcileInterval))
	}

	h := handlers.NewHandler(db, donations, reconciler, mailService, wsHub, cfg, logger.Named("http"))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           c.Handler(handlers.NewRouter(h)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// the callback waits on the gateway order lookup
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting",
			zap.Int("port", cfg.ServerPort),
			zap.String("donations", cfg.AppURL+config.RoutePrefix),
			zap.String("callback", cfg.ReturnURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	// Graceful shutdown
	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	return nil
}

func printBanner() {
	banner := `
   ██████╗  ██████╗ ██████╗  ██████╗ ███╗   ██╗ █████╗ ████████╗███████╗
  ██╔════╝ ██╔═══██╗██╔══██╗██╔═══██╗████╗  ██║██╔══██╗╚══██╔══╝██╔════╝
  ██║  ███╗██║   ██║██║  ██║██║   ██║██╔██╗ ██║███████║   ██║   █████╗
  ██║   ██║██║   ██║██║  ██║██║   ██║██║╚██╗██║██╔══██║   ██║   ██╔══╝
  ╚██████╔╝╚██████╔╝██████╔╝╚██████╔╝██║ ╚████║██║  ██║   ██║   ███████╗
   ╚═════╝  ╚═════╝ ╚═════╝  ╚═════╝ ╚═╝  ╚═══╝╚═╝  ╚═╝   ╚═╝   ╚══════╝

  Donation backend with hosted card checkout
  Version: ` + Version + `
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`
	fmt.Println(banner)
}
