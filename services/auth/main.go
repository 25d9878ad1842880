package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/perkpoint/loyalty-platform/pkg/config"
	"github.com/perkpoint/loyalty-platform/pkg/database"
	"github.com/perkpoint/loyalty-platform/pkg/events"
	"github.com/perkpoint/loyalty-platform/pkg/jwtauth"
	"github.com/perkpoint/loyalty-platform/pkg/logger"
	mw "github.com/perkpoint/loyalty-platform/pkg/middleware"
	pkgredis "github.com/perkpoint/loyalty-platform/pkg/redis"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/handlers"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/mailer"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/repository"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/service"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/social"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := pkgredis.Connect(ctx, cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	socialRepo := repository.NewSocialIdentityRepository(pool)
	refreshRepo := repository.NewRefreshTokenRepository(redisClient)
	nonceRepo := repository.NewNonceRepository(redisClient)
	rateLimitRepo := repository.NewRateLimitRepository(redisClient)

	// Outbound email
	sender := buildMailer(cfg)

	jwtService := jwtauth.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.AccessTokenTTL)

	// Services
	authService := service.NewAuthService(userRepo, tokenRepo, refreshRepo, sender, eventBus, jwtService, cfg)

	stateSigner := social.NewStateSigner(cfg.Auth.StateSecret, cfg.Auth.StateTTL)
	providers := buildProviders(cfg)
	socialService := service.NewSocialAuthService(
		providers, stateSigner, nonceRepo, userRepo, socialRepo, refreshRepo, eventBus, jwtService, cfg,
	)

	h := handlers.New(authService, socialService, rateLimitRepo, jwtService, cfg)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("auth"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.CORS(cfg.Server.AllowedOrigins))

	r.Route("/", func(r chi.Router) {
		r.With(h.RateLimit("register", 10, time.Minute)).Post("/register", h.Register)
		r.With(h.RateLimit("login", 10, time.Minute)).Post("/login", h.Login)
		r.Post("/refresh", h.RefreshToken)
		r.Post("/logout", h.Logout)

		r.Get("/confirm-email", h.ConfirmEmail)
		r.Post("/confirm-email", h.ConfirmEmail)
		r.With(h.RateLimit("resend_confirmation", 5, time.Minute)).Post("/resend-confirmation", h.ResendConfirmation)

		r.With(h.RateLimit("password_reset", 5, time.Minute)).Post("/password-reset/request", h.RequestPasswordReset)
		r.Post("/password-reset/confirm", h.ResetPassword)

		r.Get("/social/{provider}/begin", h.SocialBegin)
		r.Get("/social/{provider}/callback", h.SocialCallback)
		r.Post("/social/{provider}/callback", h.SocialCallback)

		r.With(h.RequireJWT()).Get("/me", h.Me)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))
			r.Get("/users", h.ListUsers)
			r.Get("/users/{id}", h.GetUser)
			r.Post("/users/{id}/roles", h.AssignRoles)
			r.Delete("/users/{id}/roles", h.RevokeRoles)
			r.Patch("/users/{id}/status", h.SetStatus)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down auth service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Auth service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting auth service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Auth service error", "error", err)
		os.Exit(1)
	}
}

func buildMailer(cfg *config.Config) mailer.Sender {
	switch {
	case cfg.Email.DevMode:
		return mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		return mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
	default:
		return mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPFrom, cfg.Email.FromName, cfg.Email.SMTPUser, cfg.Email.SMTPPass)
	}
}

func buildProviders(cfg *config.Config) []social.Provider {
	var providers []social.Provider
	if cfg.Social.GoogleClientID != "" {
		providers = append(providers, social.NewGoogleProvider(
			cfg.Social.GoogleClientID, cfg.Social.GoogleClientSecret, cfg.Social.GoogleRedirectURL,
		))
	}
	if cfg.Social.AppleClientID != "" {
		providers = append(providers, social.NewAppleProvider(
			cfg.Social.AppleClientID, cfg.Social.AppleClientSecret, cfg.Social.AppleRedirectURL,
		))
	}
	return providers
}
