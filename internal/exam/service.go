package exam

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omrclass/omr-backend/internal/omr"
)

// Service owns the submit and review flows. Grading happens exactly once,
// synchronously, at submit time; the review paths re-derive per-question
// verdicts from the same resolver instead of keeping their own copies.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Submit grades a sheet against its exam and persists the result. A second
// submission by the same user for the same exam is rejected with
// ErrAlreadySubmitted.
func (s *Service) Submit(ctx context.Context, examID, userID string, answers []string, track int) (Submission, omr.Result, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return Submission{}, omr.Result{}, err
	}
	exists, err := s.store.HasSubmission(ctx, examID, userID)
	if err != nil {
		return Submission{}, omr.Result{}, fmt.Errorf("check submission: %w", err)
	}
	if exists {
		return Submission{}, omr.Result{}, ErrAlreadySubmitted
	}

	normalized := normalizeAnswers(answers, e.Def.QuestionCount)
	res := omr.Grade(e.Def, normalized, track)

	sub := Submission{
		ID:             uuid.NewString(),
		ExamID:         examID,
		UserID:         userID,
		Answers:        normalized,
		SelectedTrack:  track,
		Score:          res.EarnedScore,
		CorrectCount:   res.CorrectCount,
		WrongQuestions: res.WrongQuestions,
		SubmittedAt:    s.now().Unix(),
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return Submission{}, omr.Result{}, err
	}
	return sub, res, nil
}

// Review re-grades a stored submission for display. Both the student detail
// view and the teacher's sheet review go through here, so every caller sees
// the same verdicts.
func (s *Service) Review(ctx context.Context, submissionID string) (Submission, omr.Result, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, omr.Result{}, err
	}
	res, err := s.Regrade(ctx, sub)
	if err != nil {
		return Submission{}, omr.Result{}, err
	}
	return sub, res, nil
}

// Regrade derives per-question verdicts for a submission the caller already
// holds, loading only the exam.
func (s *Service) Regrade(ctx context.Context, sub Submission) (omr.Result, error) {
	e, err := s.store.GetExam(ctx, sub.ExamID)
	if err != nil {
		return omr.Result{}, err
	}
	return omr.Grade(e.Def, sub.Answers, sub.SelectedTrack), nil
}

// normalizeAnswers pads or trims to the sheet length and replaces empty slots
// with the unanswered literal, the form the storage encoding expects.
func normalizeAnswers(answers []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		v := ""
		if i < len(answers) {
			v = answers[i]
		}
		if v == "" {
			v = omr.Unanswered
		}
		out[i] = v
	}
	return out
}
