package auth

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/omrclass/omr-backend/internal/db"
	"github.com/omrclass/omr-backend/internal/rbac"
	syncx "github.com/omrclass/omr-backend/internal/sync"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func seedUser(t *testing.T, dbh *sql.DB, username, password, role string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	id := uuid.NewString()
	_, err = dbh.Exec(
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
		id, username, string(hash), role, time.Now().Unix())
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func sessionMarker(t *testing.T, dbh *sql.DB, id string) string {
	t.Helper()
	var tok string
	if err := dbh.QueryRow(`SELECT current_session_token FROM users WHERE id=$1`, id).Scan(&tok); err != nil {
		t.Fatalf("read marker: %v", err)
	}
	return tok
}

func postLogin(t *testing.T, h http.HandlerFunc, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginRecordsSessionMarker(t *testing.T) {
	dbh := newTestDB(t)
	id := seedUser(t, dbh, "alice", "pw", "student")
	h := LoginHandler(NewAuthService("test-secret"), dbh, syncx.NewEventRepo(dbh))

	rec := postLogin(t, h, "alice", "pw")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["access_token"] == "" || resp["user_id"] != id || resp["role"] != "student" {
		t.Fatalf("response: %v", resp)
	}
	if got := sessionMarker(t, dbh, id); got != resp["access_token"] {
		t.Fatalf("marker %q should equal the issued token", got)
	}
	var loginAt sql.NullInt64
	if err := dbh.QueryRow(`SELECT last_login_at FROM users WHERE id=$1`, id).Scan(&loginAt); err != nil {
		t.Fatalf("read last_login_at: %v", err)
	}
	if !loginAt.Valid || loginAt.Int64 == 0 {
		t.Fatal("last_login_at not stamped")
	}
}

func TestSecondLoginReplacesMarkerAndLogsRevocation(t *testing.T) {
	dbh := newTestDB(t)
	id := seedUser(t, dbh, "alice", "pw", "student")
	events := syncx.NewEventRepo(dbh)
	h := LoginHandler(NewAuthService("test-secret"), dbh, events)

	if rec := postLogin(t, h, "alice", "pw"); rec.Code != http.StatusOK {
		t.Fatalf("first login: %d", rec.Code)
	}
	rec := postLogin(t, h, "alice", "pw")
	if rec.Code != http.StatusOK {
		t.Fatalf("second login: %d", rec.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if got := sessionMarker(t, dbh, id); got != resp["access_token"] {
		t.Fatalf("marker %q should track the latest login", got)
	}

	revocations, err := events.Search(context.Background(), syncx.EventSessionRevoked, 10)
	if err != nil {
		t.Fatalf("search events: %v", err)
	}
	if len(revocations) != 1 || revocations[0].Key != id {
		t.Fatalf("expected one revocation for %s, got %+v", id, revocations)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	dbh := newTestDB(t)
	seedUser(t, dbh, "alice", "pw", "student")
	h := LoginHandler(NewAuthService("test-secret"), dbh, nil)

	if rec := postLogin(t, h, "alice", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: got %d", rec.Code)
	}
	if rec := postLogin(t, h, "nobody", "pw"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: got %d", rec.Code)
	}
	// A failed login must not leave a marker behind.
	var n int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM users WHERE current_session_token != ''`).Scan(&n); err != nil {
		t.Fatalf("count markers: %v", err)
	}
	if n != 0 {
		t.Fatalf("%d markers after failed logins", n)
	}
}

func TestLogoutClearsSessionMarker(t *testing.T) {
	dbh := newTestDB(t)
	id := seedUser(t, dbh, "alice", "pw", "student")
	events := syncx.NewEventRepo(dbh)

	login := LoginHandler(NewAuthService("test-secret"), dbh, events)
	if rec := postLogin(t, login, "alice", "pw"); rec.Code != http.StatusOK {
		t.Fatalf("login: %d", rec.Code)
	}
	if sessionMarker(t, dbh, id) == "" {
		t.Fatal("precondition: login should leave a marker")
	}

	logout := LogoutHandler(dbh, events)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req = req.WithContext(rbac.WithSubject(req.Context(), id))
	rec := httptest.NewRecorder()
	logout.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: got %d", rec.Code)
	}
	if got := sessionMarker(t, dbh, id); got != "" {
		t.Fatalf("marker survived logout: %q", got)
	}
	var logoutAt sql.NullInt64
	if err := dbh.QueryRow(`SELECT last_logout_at FROM users WHERE id=$1`, id).Scan(&logoutAt); err != nil {
		t.Fatalf("read last_logout_at: %v", err)
	}
	if !logoutAt.Valid || logoutAt.Int64 == 0 {
		t.Fatal("last_logout_at not stamped")
	}
}

func TestSignupThenLogin(t *testing.T) {
	dbh := newTestDB(t)
	signup := SignupHandler(dbh)

	body, _ := json.Marshal(map[string]string{"username": "bob", "password": "pw", "role": "teacher"})
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	signup.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: got %d, body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	signup.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate username: got %d", rec.Code)
	}

	login := LoginHandler(NewAuthService("test-secret"), dbh, nil)
	if rec := postLogin(t, login, "bob", "pw"); rec.Code != http.StatusOK {
		t.Fatalf("login after signup: %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestSignupRejectsPrivilegedRole(t *testing.T) {
	dbh := newTestDB(t)
	body, _ := json.Marshal(map[string]string{"username": "eve", "password": "pw", "role": "admin"})
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	SignupHandler(dbh).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("admin signup: got %d", rec.Code)
	}
}

func TestAttachRoleFromDB(t *testing.T) {
	dbh := newTestDB(t)
	id := seedUser(t, dbh, "alice", "pw", "teacher")

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = rbac.RoleFromContext(r.Context())
		w.WriteHeader(200)
	})

	// Stored role wins over a stale claim.
	h := AttachRoleFromDB(dbh, false)(next)
	req := httptest.NewRequest(http.MethodGet, "/exams", nil)
	ctx := rbac.WithSubject(req.Context(), id)
	ctx = rbac.WithRole(ctx, "student")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusOK || seen != "teacher" {
		t.Fatalf("stored role: code %d, role %q", rec.Code, seen)
	}

	// No row, no fallback: denied.
	req = httptest.NewRequest(http.MethodGet, "/exams", nil)
	ctx = rbac.WithSubject(req.Context(), "ghost")
	ctx = rbac.WithRole(ctx, "student")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing row without fallback: got %d", rec.Code)
	}

	// No row, dev fallback: the claim stands.
	seen = ""
	dev := AttachRoleFromDB(dbh, true)(next)
	req = httptest.NewRequest(http.MethodGet, "/exams", nil)
	ctx = rbac.WithSubject(req.Context(), "ghost")
	ctx = rbac.WithRole(ctx, "student")
	rec = httptest.NewRecorder()
	dev.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusOK || seen != "student" {
		t.Fatalf("dev fallback: code %d, role %q", rec.Code, seen)
	}
}
