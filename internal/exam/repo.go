package exam

import (
	"context"
	"errors"
)

var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadySubmitted   = errors.New("submission already exists for this exam")
)

type ListOpts struct {
	Q       string // substring match on name
	OwnerID string // restrict to one teacher's exams
	Limit   int
	Offset  int
}

type SubmissionListOpts struct {
	ExamID string
	UserID string
	Limit  int
	Offset int
}

type Store interface {
	PutExam(ctx context.Context, e Exam) error // full-record overwrite on conflict
	GetExam(ctx context.Context, id string) (Exam, error)
	DeleteExam(ctx context.Context, id string) error
	ListExams(ctx context.Context, opts ListOpts) ([]Exam, error)

	CreateSubmission(ctx context.Context, s Submission) error
	GetSubmission(ctx context.Context, id string) (Submission, error)
	ListSubmissions(ctx context.Context, opts SubmissionListOpts) ([]Submission, error)
	HasSubmission(ctx context.Context, examID, userID string) (bool, error)
}
