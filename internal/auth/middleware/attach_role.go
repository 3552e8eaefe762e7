package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/omrclass/omr-backend/internal/rbac"
)

// AttachRoleFromDB swaps the role claim for the role stored on the user row.
// Tokens outlive role changes (a demoted teacher keeps an 8h token), so the
// row is authoritative. allowClaimFallback lets dev setups run on claims
// alone before the users table has real rows; prod denies instead.
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			role, err := lookupRole(ctx, db, rbac.SubjectFromContext(ctx))
			if err == nil && knownRole(role) {
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
				return
			}
			if allowClaimFallback && rbac.RoleFromContext(ctx) != "" {
				next.ServeHTTP(w, r) // claim set by JWTMiddleware stands
				return
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

// lookupRole resolves a JWT subject to its stored role. Subjects are always
// user row ids; login never issues anything else. A missing row is not an
// error, it just yields no role.
func lookupRole(ctx context.Context, db *sql.DB, sub string) (string, error) {
	if sub == "" {
		return "", nil
	}
	var role string
	err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, sub).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return role, err
}

func knownRole(role string) bool {
	_, ok := rbac.RolePermissions[role]
	return ok
}
