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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/prepdesk/prepdesk/internal/api/http"
	"github.com/prepdesk/prepdesk/internal/attempt"
	auth "github.com/prepdesk/prepdesk/internal/auth/middleware"
	"github.com/prepdesk/prepdesk/internal/autosave"
	"github.com/prepdesk/prepdesk/internal/config"
	"github.com/prepdesk/prepdesk/internal/content"
	"github.com/prepdesk/prepdesk/internal/db"
	"github.com/prepdesk/prepdesk/internal/rbac"
	"github.com/prepdesk/prepdesk/internal/session"
	"github.com/prepdesk/prepdesk/internal/syncx"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	loader := content.NewSQLLoader(dbh)
	store := attempt.NewSQLStore(dbh, cfg.DBDriver)
	events := syncx.NewEventRepo(dbh)
	backups := autosave.NewBackupCache()
	mgr := session.NewManager(loader, store, backups, events, cfg.AutosaveInterval, cfg.SaveDebounce)

	// --- Auth (local JWT) ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, cfg.AdminUser, cfg.AdminPassHash))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("test:view")).
			Get("/tests/{testID}", api.GetTestHandler(loader))

		// Student exam-session flow
		pr.Route("/tests/{testID}/session", func(sr chi.Router) {
			sr.Use(rbac.Require("session:run"))
			sr.Post("/", api.OpenSessionHandler(mgr))
			sr.Get("/", api.GetSessionHandler(mgr))
			sr.Delete("/", api.CloseSessionHandler(mgr))
			sr.Post("/select", api.SelectModuleHandler(mgr))
			sr.Post("/answer", api.AnswerHandler(mgr))
			sr.Post("/flag", api.FlagHandler(mgr))
			sr.Post("/crossout", api.CrossOutHandler(mgr))
			sr.Post("/next", api.NextHandler(mgr))
			sr.Post("/prev", api.PrevHandler(mgr))
			sr.Post("/part-confirm", api.ConfirmPartHandler(mgr))
			sr.Post("/pause", api.PauseTimerHandler(mgr))
			sr.Post("/timer-resume", api.ResumeTimerHandler(mgr))
			sr.Post("/proceed", api.ProceedHandler(mgr))
		})

		pr.With(rbac.RequireAny("results:view-own", "results:view-all")).
			Get("/tests/{testID}/results", api.GetMyResultsHandler(store))
		pr.With(rbac.Require("results:view-all")).
			Get("/attempts/{attemptID}/results", api.GetAttemptResultsHandler(store))
		pr.With(rbac.Require("results:view-all")).
			Get("/attempts/{attemptID}/events", api.GetAttemptEventsHandler(events))

		// Manual essay grading channel
		pr.With(rbac.Require("grade:apply")).
			Post("/attempts/{attemptID}/modules/{moduleID}/grade", api.ApplyEssayGradeHandler(store))
		pr.With(rbac.RequireAny("results:view-own", "results:view-all")).
			Get("/attempts/{attemptID}/modules/{moduleID}/grade", api.GetEssayGradeHandler(store))
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	go func() {
		log.Printf("gateway listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Graceful shutdown: flush every live session before exiting so no exam
	// progress is stranded in memory.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	mgr.CloseAll(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
