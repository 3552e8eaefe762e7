package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omrclass/omr-backend/internal/exam"
	"github.com/omrclass/omr-backend/internal/omr"
	"github.com/omrclass/omr-backend/internal/rbac"
	syncx "github.com/omrclass/omr-backend/internal/sync"
)

type submitRequest struct {
	Answers       []string `json:"answers"`
	SelectedTrack int      `json:"selected_track,omitempty"` // 1-based; 0 = none
}

type submissionView struct {
	ID             string   `json:"id"`
	ExamID         string   `json:"exam_id"`
	UserID         string   `json:"user_id"`
	Answers        []string `json:"answers"`
	SelectedTrack  int      `json:"selected_track,omitempty"`
	Score          int      `json:"score"`
	CorrectCount   int      `json:"correct_count"`
	WrongQuestions []int    `json:"wrong_questions"`
	SubmittedAt    int64    `json:"submitted_at"`
}

func toSubmissionView(s exam.Submission) submissionView {
	return submissionView{
		ID:             s.ID,
		ExamID:         s.ExamID,
		UserID:         s.UserID,
		Answers:        s.Answers,
		SelectedTrack:  s.SelectedTrack,
		Score:          s.Score,
		CorrectCount:   s.CorrectCount,
		WrongQuestions: s.WrongQuestions,
		SubmittedAt:    s.SubmittedAt,
	}
}

// POST /exams/{examID}/submissions
func SubmitHandler(svc *exam.Service, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())

		s, res, err := svc.Submit(r.Context(), examID, sub, req.Answers, req.SelectedTrack)
		switch {
		case errors.Is(err, exam.ErrExamNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case errors.Is(err, exam.ErrAlreadySubmitted):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logEvent(r, events, syncx.EventSubmissionCreated, s.ID, map[string]string{"exam_id": examID})
		respondJSON(w, http.StatusCreated, map[string]any{
			"submission": toSubmissionView(s),
			"result":     res,
		})
	}
}

// GET /submissions?exam_id=...&user_id=...
//
// Students are forced onto their own history regardless of the query.
func ListSubmissionsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := exam.SubmissionListOpts{
			ExamID: r.URL.Query().Get("exam_id"),
			UserID: r.URL.Query().Get("user_id"),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		if !isStaff(rbac.RoleFromContext(r.Context())) {
			opts.UserID = rbac.SubjectFromContext(r.Context())
		}
		list, err := store.ListSubmissions(r.Context(), opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]submissionView, 0, len(list))
		for _, s := range list {
			out = append(out, toSubmissionView(s))
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// GET /submissions/{submissionID}
func GetSubmissionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := fetchVisible(w, r, store)
		if !ok {
			return
		}
		respondJSON(w, http.StatusOK, toSubmissionView(s))
	}
}

// GET /submissions/{submissionID}/review
//
// Re-grades the stored answers against the current key and returns the
// per-question verdicts alongside the stored summary.
func ReviewHandler(svc *exam.Service, store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := fetchVisible(w, r, store)
		if !ok {
			return
		}
		res, err := svc.Regrade(r.Context(), s)
		if errors.Is(err, exam.ErrExamNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		staff := isStaff(rbac.RoleFromContext(r.Context()))
		questions := res.Questions
		if !staff {
			// Students see verdicts but not the key itself.
			redacted := make([]omr.GradedQuestion, len(questions))
			for i, q := range questions {
				q.Correct = ""
				redacted[i] = q
			}
			questions = redacted
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"submission": toSubmissionView(s),
			"result": map[string]any{
				"correct_count":   res.CorrectCount,
				"earned_score":    res.EarnedScore,
				"total_score":     res.TotalScore,
				"wrong_questions": res.WrongQuestions,
				"questions":       questions,
			},
		})
	}
}

// fetchVisible loads the submission and enforces that students only reach
// their own records. Writes the error response itself on failure.
func fetchVisible(w http.ResponseWriter, r *http.Request, store exam.Store) (exam.Submission, bool) {
	id := chi.URLParam(r, "submissionID")
	s, err := store.GetSubmission(r.Context(), id)
	if errors.Is(err, exam.ErrSubmissionNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return exam.Submission{}, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return exam.Submission{}, false
	}
	if !isStaff(rbac.RoleFromContext(r.Context())) && s.UserID != rbac.SubjectFromContext(r.Context()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return exam.Submission{}, false
	}
	return s, true
}
