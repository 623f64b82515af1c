package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/kevinaaaquil/bookdash/config"
	"github.com/kevinaaaquil/bookdash/handlers"
	"github.com/kevinaaaquil/bookdash/middleware"
	"github.com/kevinaaaquil/bookdash/service"
	"github.com/kevinaaaquil/bookdash/store"
	"github.com/kevinaaaquil/bookdash/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("config: ", err)
	}
	config.LogEnv("PORT", "BOOKS_API_URL", "AWS_S3_BUCKET", "ALERT_SMTP_HOST", "ALERT_SMTP_PASSWORD", "SECRET_KEY")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	gateway := service.NewGateway(cfg.BooksAPIURL, cfg.BooksAPITimeout)
	cache := store.NewCache(gateway.FetchAll)
	defer cache.Clear()

	hub := service.NewHub()
	notes := service.NewNotifier(cfg.NotifyMax, cfg.NotifyTTL, hub)

	mailCfg := service.MailConfig{
		Host:     cfg.AlertSMTPHost,
		Port:     cfg.AlertSMTPPort,
		Username: cfg.AlertSMTPUser,
		From:     cfg.AlertFrom,
		To:       cfg.AlertTo,
	}
	if mailCfg.Enabled() {
		mailCfg.Password, err = utils.Open(cfg.AlertSMTPPassword, cfg.SecretKey)
		if err != nil {
			log.Fatal("ALERT_SMTP_PASSWORD: ", err)
		}
		mailer := service.NewMailer(mailCfg)
		defer mailer.Close()
		notes.AddSink(mailer)
	}

	var publisher *service.Publisher
	if cfg.S3Bucket != "" {
		publisher, err = service.NewPublisher(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretKey, cfg.ExportPrefix)
		if err != nil {
			log.Fatal("s3:", err)
		}
	} else {
		log.Println("warning: AWS_S3_BUCKET not set; POST /api/export is disabled")
	}

	views := store.NewSessions(cfg.ViewSessionTTL, func() service.ViewState {
		return service.NewViewState(cfg.PageSize)
	})
	go sweepSessions(ctx, views, cfg.ViewSessionTTL)

	booksHandler := &handlers.BooksHandler{
		Cache:     cache,
		Coord:     service.NewCoordinator(gateway, cache, notes, hub),
		Notes:     notes,
		Views:     views,
		Publisher: publisher,
	}
	eventsHandler := &handlers.EventsHandler{Hub: hub}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/ws", eventsHandler.Serve)
	r.Route("/api", booksHandler.Routes)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Println("server listening on :" + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("shutdown:", err)
	}
}

func sweepSessions(ctx context.Context, views *store.Sessions[service.ViewState], ttl time.Duration) {
	t := time.NewTicker(ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := views.Sweep(); n > 0 {
				log.Printf("sessions: swept %d expired views, %d active", n, views.Len())
			}
		}
	}
}
