package exam

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/omrclass/omr-backend/internal/db"
	"github.com/omrclass/omr-backend/internal/omr"
)

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return NewSQLStore(dbh)
}

func electiveExam() Exam {
	return Exam{
		ID:      "exam-e",
		Name:    "Final",
		OwnerID: "teacher-1",
		Def: omr.Definition{
			QuestionCount:   4,
			HasElective:     true,
			ElectiveStart:   3,
			ElectiveEnd:     4,
			TrackCount:      2,
			CommonAnswers:   []string{"1", "4"},
			CommonScores:    []int{2, 3},
			CommonTypes:     []omr.AnswerType{omr.TypeChoice, omr.TypeFree},
			ElectiveAnswers: [][]string{{"5", "6"}, {"7", "8"}},
			ElectiveScores:  []int{4, 4},
			ElectiveTypes:   []omr.AnswerType{omr.TypeChoice, omr.TypeChoice},
		},
		CreatedAt: 42,
	}
}

func TestSQLStore_ExamRoundTrip(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	want := electiveExam()
	if err := s.PutExam(ctx, want); err != nil {
		t.Fatalf("PutExam: %v", err)
	}
	got, err := s.GetExam(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("exam round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestSQLStore_PutExamOverwrites(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	e := electiveExam()
	if err := s.PutExam(ctx, e); err != nil {
		t.Fatalf("PutExam: %v", err)
	}
	// Full overwrite: drop the elective, rename.
	e.Name = "Final (revised)"
	e.Def = omr.Definition{
		QuestionCount: 2,
		CommonAnswers: []string{"1", "2"},
		CommonScores:  []int{5, 5},
	}
	if err := s.PutExam(ctx, e); err != nil {
		t.Fatalf("PutExam overwrite: %v", err)
	}
	got, err := s.GetExam(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if got.Name != "Final (revised)" || got.Def.HasElective || got.Def.QuestionCount != 2 {
		t.Fatalf("overwrite not applied: %+v", got)
	}
}

func TestSQLStore_GetExamNotFound(t *testing.T) {
	s := newTestSQLStore(t)
	if _, err := s.GetExam(context.Background(), "missing"); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("expected ErrExamNotFound, got %v", err)
	}
	if err := s.DeleteExam(context.Background(), "missing"); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("delete: expected ErrExamNotFound, got %v", err)
	}
}

func TestSQLStore_ListExams(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	a := electiveExam()
	b := electiveExam()
	b.ID, b.Name, b.OwnerID, b.CreatedAt = "exam-f", "Mock exam", "teacher-2", 43
	for _, e := range []Exam{a, b} {
		if err := s.PutExam(ctx, e); err != nil {
			t.Fatalf("PutExam: %v", err)
		}
	}

	all, err := s.ListExams(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(all) != 2 || all[0].ID != "exam-f" { // newest first
		t.Fatalf("expected newest-first list of 2, got %+v", all)
	}

	mine, err := s.ListExams(ctx, ListOpts{OwnerID: "teacher-2"})
	if err != nil {
		t.Fatalf("ListExams owner: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "exam-f" {
		t.Fatalf("owner filter: got %+v", mine)
	}

	named, err := s.ListExams(ctx, ListOpts{Q: "Mock"})
	if err != nil {
		t.Fatalf("ListExams q: %v", err)
	}
	if len(named) != 1 || named[0].ID != "exam-f" {
		t.Fatalf("name filter: got %+v", named)
	}
}

func TestSQLStore_SubmissionLifecycle(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	if err := s.PutExam(ctx, electiveExam()); err != nil {
		t.Fatalf("PutExam: %v", err)
	}
	sub := Submission{
		ID:             "sub-1",
		ExamID:         "exam-e",
		UserID:         "student-1",
		Answers:        []string{"1", omr.Unanswered, "7", "9"},
		SelectedTrack:  2,
		Score:          6,
		CorrectCount:   2,
		WrongQuestions: []int{2, 4},
		SubmittedAt:    1000,
	}
	if err := s.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	got, err := s.GetSubmission(ctx, "sub-1")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if !reflect.DeepEqual(got, sub) {
		t.Fatalf("submission round trip mismatch:\n got %+v\nwant %+v", got, sub)
	}

	ok, err := s.HasSubmission(ctx, "exam-e", "student-1")
	if err != nil || !ok {
		t.Fatalf("HasSubmission: ok=%v err=%v", ok, err)
	}
	ok, err = s.HasSubmission(ctx, "exam-e", "student-2")
	if err != nil || ok {
		t.Fatalf("HasSubmission other student: ok=%v err=%v", ok, err)
	}

	// The (exam, user) pair is unique at the store level too.
	dup := sub
	dup.ID = "sub-2"
	if err := s.CreateSubmission(ctx, dup); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestSQLStore_SubmissionNoTrack(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	if err := s.PutExam(ctx, electiveExam()); err != nil {
		t.Fatalf("PutExam: %v", err)
	}
	sub := Submission{
		ID:          "sub-nt",
		ExamID:      "exam-e",
		UserID:      "student-9",
		Answers:     []string{omr.Unanswered, omr.Unanswered, omr.Unanswered, omr.Unanswered},
		SubmittedAt: 1001,
	}
	if err := s.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	got, err := s.GetSubmission(ctx, "sub-nt")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.SelectedTrack != 0 {
		t.Fatalf("expected no track, got %d", got.SelectedTrack)
	}
}

func TestSQLStore_ListSubmissions(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	if err := s.PutExam(ctx, electiveExam()); err != nil {
		t.Fatalf("PutExam: %v", err)
	}
	other := electiveExam()
	other.ID = "exam-g"
	if err := s.PutExam(ctx, other); err != nil {
		t.Fatalf("PutExam: %v", err)
	}

	subs := []Submission{
		{ID: "s1", ExamID: "exam-e", UserID: "u1", Answers: []string{"1"}, SubmittedAt: 10},
		{ID: "s2", ExamID: "exam-e", UserID: "u2", Answers: []string{"1"}, SubmittedAt: 20},
		{ID: "s3", ExamID: "exam-g", UserID: "u1", Answers: []string{"1"}, SubmittedAt: 30},
	}
	for _, sub := range subs {
		if err := s.CreateSubmission(ctx, sub); err != nil {
			t.Fatalf("CreateSubmission %s: %v", sub.ID, err)
		}
	}

	byExam, err := s.ListSubmissions(ctx, SubmissionListOpts{ExamID: "exam-e"})
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(byExam) != 2 || byExam[0].ID != "s2" { // newest first
		t.Fatalf("exam filter: got %+v", byExam)
	}

	byUser, err := s.ListSubmissions(ctx, SubmissionListOpts{UserID: "u1"})
	if err != nil {
		t.Fatalf("ListSubmissions user: %v", err)
	}
	if len(byUser) != 2 || byUser[0].ID != "s3" {
		t.Fatalf("user filter: got %+v", byUser)
	}
}
