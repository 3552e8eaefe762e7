package http

import (
	"database/sql"
	"net/http"
	"strconv"
)

type userView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	School      string `json:"school,omitempty"`
	Grade       string `json:"grade,omitempty"`
}

// GET /users?q=...&role=...
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		role := r.URL.Query().Get("role")
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

		query := `SELECT id, username, role, display_name, email, school, grade FROM users`
		var (
			where []string
			args  []any
		)
		if q != "" {
			args = append(args, "%"+q+"%")
			n := strconv.Itoa(len(args))
			where = append(where, `(username LIKE $`+n+` OR display_name LIKE $`+n+`)`)
		}
		if role != "" {
			args = append(args, role)
			where = append(where, `role=$`+strconv.Itoa(len(args)))
		}
		for i, c := range where {
			if i == 0 {
				query += ` WHERE ` + c
			} else {
				query += ` AND ` + c
			}
		}
		args = append(args, limit, offset)
		query += ` ORDER BY username LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

		rows, err := db.QueryContext(r.Context(), query, args...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		out := make([]userView, 0)
		for rows.Next() {
			var u userView
			if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.DisplayName, &u.Email, &u.School, &u.Grade); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, u)
		}
		if err := rows.Err(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}
