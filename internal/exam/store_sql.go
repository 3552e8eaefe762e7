package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/omrclass/omr-backend/internal/omr"
)

// SQLStore persists exams and submissions through database/sql. Definitions
// are stored in their delimited wire form and decoded on read.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	w := omr.EncodeDefinition(e.Def)
	createdAt := e.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO exams
		(id, name, owner_id, question_count, has_elective, elective_track_count, elective_range,
		 common_answers, common_scores, common_types,
		 elective_answers, elective_scores, elective_types, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
		 name=EXCLUDED.name, owner_id=EXCLUDED.owner_id,
		 question_count=EXCLUDED.question_count, has_elective=EXCLUDED.has_elective,
		 elective_track_count=EXCLUDED.elective_track_count, elective_range=EXCLUDED.elective_range,
		 common_answers=EXCLUDED.common_answers, common_scores=EXCLUDED.common_scores,
		 common_types=EXCLUDED.common_types, elective_answers=EXCLUDED.elective_answers,
		 elective_scores=EXCLUDED.elective_scores, elective_types=EXCLUDED.elective_types`,
		e.ID, e.Name, e.OwnerID, w.QuestionCount, boolToInt(w.HasElective), w.TrackCount, w.ElectiveRange,
		w.CommonAnswers, w.CommonScores, w.CommonTypes,
		w.ElectiveAnswers, w.ElectiveScores, w.ElectiveTypes, createdAt)
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, owner_id, question_count, has_elective,
		elective_track_count, elective_range, common_answers, common_scores, common_types,
		elective_answers, elective_scores, elective_types, created_at
		FROM exams WHERE id=$1`, id)
	return scanExam(row)
}

func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrExamNotFound
	}
	return nil
}

func (s *SQLStore) ListExams(ctx context.Context, opts ListOpts) ([]Exam, error) {
	limit, offset := clampPage(opts.Limit, opts.Offset)
	query := `SELECT id, name, owner_id, question_count, has_elective,
		elective_track_count, elective_range, common_answers, common_scores, common_types,
		elective_answers, elective_scores, elective_types, created_at
		FROM exams`
	var (
		conds []string
		args  []any
	)
	if opts.Q != "" {
		args = append(args, "%"+opts.Q+"%")
		conds = append(conds, fmt.Sprintf("name LIKE $%d", len(args)))
	}
	if opts.OwnerID != "" {
		args = append(args, opts.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateSubmission(ctx context.Context, sub Submission) error {
	var track any
	if sub.SelectedTrack > 0 {
		track = sub.SelectedTrack
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO submissions
		(id, exam_id, user_id, answers, selected_track, score, correct_count, wrong_questions, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sub.ID, sub.ExamID, sub.UserID, omr.JoinList(sub.Answers), track,
		sub.Score, sub.CorrectCount, omr.JoinInts(sub.WrongQuestions), sub.SubmittedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrAlreadySubmitted
	}
	return err
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, exam_id, user_id, answers, selected_track,
		score, correct_count, wrong_questions, submitted_at
		FROM submissions WHERE id=$1`, id)
	return scanSubmission(row)
}

func (s *SQLStore) ListSubmissions(ctx context.Context, opts SubmissionListOpts) ([]Submission, error) {
	limit, offset := clampPage(opts.Limit, opts.Offset)
	query := `SELECT id, exam_id, user_id, answers, selected_track,
		score, correct_count, wrong_questions, submitted_at FROM submissions`
	var (
		conds []string
		args  []any
	)
	if opts.ExamID != "" {
		args = append(args, opts.ExamID)
		conds = append(conds, fmt.Sprintf("exam_id=$%d", len(args)))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		conds = append(conds, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY submitted_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) HasSubmission(ctx context.Context, examID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM submissions WHERE exam_id=$1 AND user_id=$2`, examID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (Exam, error) {
	var (
		e           Exam
		w           omr.Wire
		hasElective int
	)
	err := row.Scan(&e.ID, &e.Name, &e.OwnerID, &w.QuestionCount, &hasElective,
		&w.TrackCount, &w.ElectiveRange, &w.CommonAnswers, &w.CommonScores, &w.CommonTypes,
		&w.ElectiveAnswers, &w.ElectiveScores, &w.ElectiveTypes, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrExamNotFound
		}
		return Exam{}, err
	}
	w.HasElective = hasElective != 0
	def, err := omr.DecodeDefinition(w)
	if err != nil {
		return Exam{}, fmt.Errorf("exam %s: %w", e.ID, err)
	}
	e.Def = def
	return e, nil
}

func scanSubmission(row rowScanner) (Submission, error) {
	var (
		sub     Submission
		answers string
		track   sql.NullInt64
		wrong   string
	)
	err := row.Scan(&sub.ID, &sub.ExamID, &sub.UserID, &answers, &track,
		&sub.Score, &sub.CorrectCount, &wrong, &sub.SubmittedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrSubmissionNotFound
		}
		return Submission{}, err
	}
	sub.Answers = omr.SplitList(answers)
	if track.Valid {
		sub.SelectedTrack = int(track.Int64)
	}
	sub.WrongQuestions = omr.ParseInts(wrong)
	return sub, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}
