package http

import (
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	syncx "github.com/omrclass/omr-backend/internal/sync"
)

// RequireAdminSecret gates the operator endpoints on the X-Admin-Secret
// header. An empty configured secret disables the surface entirely.
func RequireAdminSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "admin surface disabled", http.StatusUnauthorized)
				return
			}
			got := r.Header.Get("X-Admin-Secret")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type adminUserView struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	DisplayName  string `json:"display_name,omitempty"`
	Email        string `json:"email,omitempty"`
	School       string `json:"school,omitempty"`
	Grade        string `json:"grade,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	LastLoginAt  int64  `json:"last_login_at,omitempty"`
	LastLogoutAt int64  `json:"last_logout_at,omitempty"`
}

// GET /admin/users
func AdminListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT id, username, role, display_name, email, school, grade,
			        current_session_token, last_login_at, last_logout_at
			 FROM users ORDER BY username`)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		out := make([]adminUserView, 0)
		for rows.Next() {
			var (
				u                 adminUserView
				loginAt, logoutAt sql.NullInt64
			)
			if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.DisplayName, &u.Email,
				&u.School, &u.Grade, &u.SessionToken, &loginAt, &logoutAt); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			u.LastLoginAt = loginAt.Int64
			u.LastLogoutAt = logoutAt.Int64
			out = append(out, u)
		}
		if err := rows.Err(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// POST /admin/sessions/invalidate { "token": "..." }
//
// Clears the session marker matching the given token. The JWT itself stays
// valid until expiry; this only drops the advisory single-session marker.
func AdminInvalidateSessionHandler(db *sql.DB, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			http.Error(w, "token required", http.StatusBadRequest)
			return
		}

		var userID string
		err := db.QueryRowContext(r.Context(),
			`SELECT id FROM users WHERE current_session_token=$1`, req.Token).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			respondJSON(w, http.StatusOK, map[string]any{"revoked": false})
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := db.ExecContext(r.Context(),
			`UPDATE users SET current_session_token='' WHERE id=$1`, userID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logEvent(r, events, syncx.EventSessionRevoked, userID, nil)
		respondJSON(w, http.StatusOK, map[string]any{"revoked": true, "user_id": userID})
	}
}

// GET /admin/audit?q=...&limit=100
func AdminAuditHandler(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := events.Search(r.Context(),
			r.URL.Query().Get("q"),
			parseIntDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
