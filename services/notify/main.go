package main

import (
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/perkpoint/loyalty-platform/pkg/config"
	"github.com/perkpoint/loyalty-platform/pkg/events"
	"github.com/perkpoint/loyalty-platform/pkg/logger"
	mw "github.com/perkpoint/loyalty-platform/pkg/middleware"
)

// The notify worker consumes auth events and fans them out as
// notifications. Delivery here is just structured logging; the
// notify.send subject is the seam where push or SMS providers plug in.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	subscriptions := map[string]string{
		events.UserRegistered:    "user registered",
		events.EmailConfirmed:    "email confirmed",
		events.PasswordReset:     "password reset",
		events.RolesUpdated:      "roles updated",
		events.SocialSignIn:      "social sign-in",
		events.UserStatusChanged: "status changed",
	}
	for subject, kind := range subscriptions {
		subject, kind := subject, kind
		err := eventBus.QueueSubscribe(subject, "notify", func(msg *events.Message) {
			logger.Info("Notification", "kind", kind, "subject", msg.Subject, "payload", string(msg.Data))
		})
		if err != nil {
			logger.Error("Failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}

	if err := eventBus.QueueSubscribe(events.NotifySend, "notify", func(msg *events.Message) {
		var n events.NotificationEvent
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			logger.Error("Invalid notification payload", "error", err)
			return
		}
		logger.Info("Dispatching notification", "type", n.Type, "recipient", n.Recipient, "template", n.Template)
	}); err != nil {
		logger.Error("Failed to subscribe", "subject", events.NotifySend, "error", err)
		os.Exit(1)
	}

	// Health endpoint so orchestrators can probe the worker.
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Logging)
	r.Use(mw.Health)

	go func() {
		if err := http.ListenAndServe(":8086", r); err != nil {
			logger.Error("Notify service error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("Notify worker running")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down notify worker")
}
