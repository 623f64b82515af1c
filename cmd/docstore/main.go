// Command docstore serves a self-hosted JSON document store that speaks the
// same protocol as the hosted collection the dashboard talks to.
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
	"github.com/kevinaaaquil/bookdash/store"
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
	config.LogEnv("DOCSTORE_PORT", "DOCSTORE_BACKEND", "MONGODB_URI", "MONGODB_DB", "SQLITE_PATH")

	ctx := context.Background()
	var docs store.Documents
	switch cfg.DocstoreBackend {
	case "mongo":
		docs, err = store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			log.Fatal("mongodb:", err)
		}
	default:
		docs, err = store.NewSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatal("sqlite:", err)
		}
		log.Println("Opened SQLite at " + cfg.SQLitePath)
	}
	defer func() {
		if err := docs.Close(context.Background()); err != nil {
			log.Println("docstore close:", err)
		}
	}()

	h := &handlers.DocstoreHandler{Docs: docs}

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
	r.Route("/api", h.Routes)

	server := &http.Server{Addr: ":" + cfg.DocstorePort, Handler: r}
	go func() {
		log.Println("docstore listening on :" + cfg.DocstorePort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("shutdown:", err)
	}
}
