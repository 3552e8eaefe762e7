package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	api "github.com/omrclass/omr-backend/internal/api/http"
	auth "github.com/omrclass/omr-backend/internal/auth/middleware"
	"github.com/omrclass/omr-backend/internal/config"
	"github.com/omrclass/omr-backend/internal/db"
	"github.com/omrclass/omr-backend/internal/exam"
	"github.com/omrclass/omr-backend/internal/rbac"
	syncx "github.com/omrclass/omr-backend/internal/sync"
)

func main() {
	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Digital answer-sheet grading server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.SetEnvPrefix("OMR")
			v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
			v.AutomaticEnv()
			config.SetDefaults(v)

			cfg := config.FromViper(v)
			logger := newLogger(cfg.LogLevel)
			slog.SetDefault(logger)

			return serve(cmd.Context(), cfg, logger)
		},
	}
	return cmd
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	if err := seedAdmin(openCtx, dbh, cfg.AdminUser, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	store := exam.NewSQLStore(dbh)
	svc := exam.NewService(store)
	events := syncx.NewEventRepo(dbh)
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Admin-Secret"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public
	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, events))
	r.Post("/auth/signup", auth.SignupHandler(dbh))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	// Protected API (JWT → subject/role in context → authoritative DB role → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.AllowClaimFallback))

		pr.Post("/auth/logout", auth.LogoutHandler(dbh, events))

		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.CreateExamHandler(store, events))
		pr.With(rbac.Require("exam:view")).
			Get("/exams", api.ListExamsHandler(store))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(store))
		pr.With(rbac.Require("exam:update")).
			Put("/exams/{examID}", api.UpdateExamHandler(store, events))
		pr.With(rbac.RequireAny("exam:delete-own", "exam:delete")).
			Delete("/exams/{examID}", api.DeleteExamHandler(store, events))

		pr.With(rbac.Require("submission:create")).
			Post("/exams/{examID}/submissions", api.SubmitHandler(svc, events))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions", api.ListSubmissionsHandler(store))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions/{submissionID}", api.GetSubmissionHandler(store))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions/{submissionID}/review", api.ReviewHandler(svc, store))

		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
	})

	// Operator surface, gated by a shared secret instead of a user session.
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(api.RequireAdminSecret(cfg.AdminSecret))
		ar.Get("/users", api.AdminListUsersHandler(dbh))
		ar.Post("/sessions/invalidate", api.AdminInvalidateSessionHandler(dbh, events))
		ar.Get("/audit", api.AdminAuditHandler(events))
	})

	logger.Info("listening", "addr", cfg.HTTPAddr, "mode", string(cfg.Mode), "db", cfg.DBDriver)
	return http.ListenAndServe(cfg.HTTPAddr, r)
}

// seedAdmin creates the admin account on first boot. Skipped when no password
// is configured and the user is absent.
func seedAdmin(ctx context.Context, dbh *sql.DB, username, password string) error {
	if username == "" {
		return nil
	}
	var id string
	err := dbh.QueryRowContext(ctx, `SELECT id FROM users WHERE username=$1`, username).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if password == "" {
		slog.Warn("admin user missing and no admin_password configured; skipping seed", "username", username)
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}
	_, err = dbh.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, display_name, email, school, grade, created_at)
		 VALUES ($1,$2,$3,'admin','Administrator','','','',$4)`,
		uuid.NewString(), username, string(hash), time.Now().Unix())
	return err
}
