// Package main implements notifyd, the client-side session and
// notification daemon for the Communitas platform. It hydrates the
// persisted session, keeps the realtime notification channel alive, and
// exposes channel health on a local metrics endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/communitas-app/session_layer/internal/authgw"
	"github.com/communitas-app/session_layer/internal/config"
	"github.com/communitas-app/session_layer/internal/inbox"
	"github.com/communitas-app/session_layer/internal/logging"
	"github.com/communitas-app/session_layer/internal/metrics"
	"github.com/communitas-app/session_layer/internal/realtime"
	"github.com/communitas-app/session_layer/internal/session"
	"github.com/communitas-app/session_layer/internal/storage"
)

func main() {
	configPath := flag.String("config", "config/client.yaml", "Path to client config file")
	email := flag.String("email", "", "Sign in with this email before starting")
	password := flag.String("password", "", "Password for -email")
	flag.Parse()

	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.NewWithLevel("notifyd", cfg.LogLevel)
	mtr := metrics.New()

	sessions := session.NewStore(storage.NewFileStore(cfg.StoragePath), logger.WithField("component", "session"))

	gateway := authgw.New(authgw.Config{
		BaseURL:  cfg.APIBaseURL,
		Sessions: sessions,
		Logger:   logger.WithField("component", "authgw"),
	})

	box := inbox.New(
		inbox.NewRESTFetcher(cfg.APIBaseURL, sessions, nil),
		logger.WithField("component", "inbox"),
		0,
	)
	box.SubscribeUnread(mtr.SetUnread)

	notifier := realtime.New(realtime.Config{
		HubURL:   cfg.HubURL,
		Sessions: sessions,
		Logger:   logger.WithField("component", "realtime"),
		Metrics:  mtr,
	})
	notifier.OnEvent(box.OnPush)
	unbind := notifier.BindSessions()
	defer unbind()

	// Establish a session: fresh login when credentials were given,
	// otherwise the persisted one.
	if *email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := gateway.Login(ctx, *email, *password); err != nil {
			cancel()
			log.Fatalf("Login failed: %v", err)
		}
		cancel()
	} else if sess := sessions.Hydrate(); sess != nil {
		logger.WithField("user_id", sess.Claims.UserID).Info("Session hydrated")
	} else {
		logger.Info("No persisted session, waiting for login")
	}

	if sessions.Current() != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := box.Refresh(ctx); err != nil {
			logger.WithError(err).Warn("Initial inbox refresh failed")
		}
		cancel()
	}

	router := mux.NewRouter()
	router.Handle("/metrics", mtr.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "ok",
			"authenticated": sessions.Current() != nil,
			"channel":       notifier.State().String(),
			"unread":        box.Unread(),
		})
	})

	server := &http.Server{Addr: cfg.MetricsAddr, Handler: router}
	go func() {
		log.Printf("Metrics listening on %s", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Metrics server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")
	notifier.Stop()
	gateway.Cooldown().Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Metrics server shutdown: %v", err)
	}
}
