package exam

import "github.com/omrclass/omr-backend/internal/omr"

// Exam is a stored answer-sheet definition. Def is the typed model; the
// delimited wire form only exists inside the store and on the HTTP surface.
type Exam struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	OwnerID   string         `json:"owner_id,omitempty"`
	Def       omr.Definition `json:"-"`
	CreatedAt int64          `json:"created_at,omitempty"`
}

// Submission is one student's graded sheet. It is written exactly once at
// submit time and never updated.
type Submission struct {
	ID             string   `json:"id"`
	ExamID         string   `json:"exam_id"`
	UserID         string   `json:"user_id"`
	Answers        []string `json:"answers"`
	SelectedTrack  int      `json:"selected_track,omitempty"` // 1-based; 0 = none
	Score          int      `json:"score"`
	CorrectCount   int      `json:"correct_count"`
	WrongQuestions []int    `json:"wrong_questions"`
	SubmittedAt    int64    `json:"submitted_at"`
}
