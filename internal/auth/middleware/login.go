package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/omrclass/omr-backend/internal/rbac"
	syncx "github.com/omrclass/omr-backend/internal/sync"
)

// POST /auth/login { "username": "...", "password": "..." }
//
// Login runs the advisory single-session sequence: clear the previous session
// marker (recorded as a revocation), issue a fresh token, record it as the
// current session. The steps are idempotent but unlocked; two concurrent
// logins can interleave, and true exclusivity is not promised.
func LoginHandler(a *AuthService, db *sql.DB, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Password == "" {
			http.Error(w, "username and password required", http.StatusBadRequest)
			return
		}

		var (
			id, hash, role, oldToken string
		)
		err := db.QueryRowContext(r.Context(),
			`SELECT id, password_hash, role, current_session_token FROM users WHERE username=$1`,
			req.Username).Scan(&id, &hash, &role, &oldToken)
		if errors.Is(err, sql.ErrNoRows) ||
			(err == nil && bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Best-effort: kick out the previous session before issuing a new one.
		if oldToken != "" {
			_, _ = db.ExecContext(r.Context(),
				`UPDATE users SET current_session_token='' WHERE id=$1`, id)
			logEvent(r.Context(), events, syncx.EventSessionRevoked, id, nil)
		}

		tok, err := a.IssueJWT(id, role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		_, err = db.ExecContext(r.Context(),
			`UPDATE users SET current_session_token=$1, last_login_at=$2 WHERE id=$3`,
			tok, time.Now().Unix(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logEvent(r.Context(), events, syncx.EventUserLoggedIn, id, map[string]string{"username": req.Username})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": tok,
			"user_id":      id,
			"role":         role,
		})
	}
}

// POST /auth/signup
func SignupHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username    string `json:"username"`
			Password    string `json:"password"`
			Role        string `json:"role"`
			DisplayName string `json:"display_name"`
			Email       string `json:"email"`
			School      string `json:"school"`
			Grade       string `json:"grade"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Password == "" {
			http.Error(w, "username and password required", http.StatusBadRequest)
			return
		}
		if req.Role == "" {
			req.Role = "student"
		}
		if req.Role != "student" && req.Role != "teacher" {
			http.Error(w, "role must be student or teacher", http.StatusBadRequest)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		id := uuid.NewString()
		_, err = db.ExecContext(r.Context(),
			`INSERT INTO users (id, username, password_hash, role, display_name, email, school, grade, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			id, req.Username, string(hash), req.Role,
			req.DisplayName, req.Email, req.School, req.Grade, time.Now().Unix())
		if err != nil {
			if isUniqueViolation(err) {
				http.Error(w, "username already taken", http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "username": req.Username, "role": req.Role})
	}
}

// POST /auth/logout (authenticated)
func LogoutHandler(db *sql.DB, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		if sub == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, err := db.ExecContext(r.Context(),
			`UPDATE users SET current_session_token='', last_logout_at=$1 WHERE id=$2`,
			time.Now().Unix(), sub)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logEvent(r.Context(), events, syncx.EventUserLoggedOut, sub, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

func logEvent(ctx context.Context, events *syncx.EventRepo, typ, key string, data any) {
	if events == nil {
		return
	}
	_ = events.Append(ctx, typ, key, data)
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}
