package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/omrclass/omr-backend/internal/exam"
	"github.com/omrclass/omr-backend/internal/omr"
	"github.com/omrclass/omr-backend/internal/rbac"
	syncx "github.com/omrclass/omr-backend/internal/sync"
)

// examPayload is the HTTP shape of an exam: the delimited wire encoding plus
// name/id. Decoded into the typed model at this boundary and nowhere else.
type examPayload struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	omr.Wire
}

func toPayload(e exam.Exam) examPayload {
	return examPayload{
		ID:        e.ID,
		Name:      e.Name,
		OwnerID:   e.OwnerID,
		CreatedAt: e.CreatedAt,
		Wire:      omr.EncodeDefinition(e.Def),
	}
}

// stripKeys blanks the answer keys before an exam is served to a student.
func stripKeys(p examPayload) examPayload {
	p.CommonAnswers = ""
	p.ElectiveAnswers = ""
	return p
}

func isStaff(role string) bool { return role == "teacher" || role == "admin" }

func decodeExamPayload(r *http.Request) (exam.Exam, error) {
	var p examPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return exam.Exam{}, errors.New("bad json")
	}
	if p.Name == "" {
		return exam.Exam{}, errors.New("name required")
	}
	def, err := omr.DecodeDefinition(p.Wire)
	if err != nil {
		return exam.Exam{}, err
	}
	if err := def.Validate(); err != nil {
		return exam.Exam{}, err
	}
	return exam.Exam{ID: p.ID, Name: p.Name, Def: def}, nil
}

// POST /exams
func CreateExamHandler(store exam.Store, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := decodeExamPayload(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.OwnerID = rbac.SubjectFromContext(r.Context())
		e.CreatedAt = time.Now().Unix()
		if err := store.PutExam(r.Context(), e); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logEvent(r, events, syncx.EventExamSaved, e.ID, map[string]string{"name": e.Name})
		respondJSON(w, http.StatusCreated, toPayload(e))
	}
}

// PUT /exams/{examID} overwrites the whole record.
func UpdateExamHandler(store exam.Store, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		existing, err := store.GetExam(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())
		if role != "admin" && existing.OwnerID != sub {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		e, err := decodeExamPayload(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		e.ID = id
		e.OwnerID = existing.OwnerID
		e.CreatedAt = existing.CreatedAt
		if err := store.PutExam(r.Context(), e); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logEvent(r, events, syncx.EventExamSaved, e.ID, map[string]string{"name": e.Name})
		respondJSON(w, http.StatusOK, toPayload(e))
	}
}

// GET /exams/{examID}
func GetExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		e, err := store.GetExam(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		p := toPayload(e)
		if !isStaff(rbac.RoleFromContext(r.Context())) {
			p = stripKeys(p)
		}
		respondJSON(w, http.StatusOK, p)
	}
}

// GET /exams?q=...&limit=50&offset=0
func ListExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListExams(r.Context(), exam.ListOpts{
			Q:      r.URL.Query().Get("q"),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		staff := isStaff(rbac.RoleFromContext(r.Context()))
		out := make([]examPayload, 0, len(list))
		for _, e := range list {
			p := toPayload(e)
			if !staff {
				p = stripKeys(p)
			}
			out = append(out, p)
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// DELETE /exams/{examID}
func DeleteExamHandler(store exam.Store, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		existing, err := store.GetExam(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())
		if role != "admin" && existing.OwnerID != sub {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := store.DeleteExam(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logEvent(r, events, syncx.EventExamDeleted, id, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

func logEvent(r *http.Request, events *syncx.EventRepo, typ, key string, data any) {
	if events == nil {
		return
	}
	_ = events.Append(r.Context(), typ, key, data)
}
