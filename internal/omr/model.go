package omr

import (
	"errors"
	"fmt"
)

// AnswerType is the single-character domain token stored on the sheet.
type AnswerType string

const (
	// TypeChoice marks a multiple-choice (bubble) question.
	TypeChoice AnswerType = "객"
	// TypeFree marks a free-response question.
	TypeFree AnswerType = "주"
)

// Unanswered is the literal stored for a blank slot in a submission's
// answer string.
const Unanswered = "null"

// Definition is the typed form of an exam's structure. The wire/storage
// encoding is flat delimited strings (see codec.go); everything else in the
// system works against this struct.
//
// Question numbers are 1-based. When HasElective is set, questions
// ElectiveStart..ElectiveEnd (inclusive) are answered per track; the common
// sequences cover the remaining questions in ascending number order with the
// elective block removed.
type Definition struct {
	QuestionCount int
	HasElective   bool
	ElectiveStart int
	ElectiveEnd   int
	TrackCount    int

	CommonAnswers []string
	CommonTypes   []AnswerType
	CommonScores  []int

	// ElectiveAnswers[t] is track t+1's key, one entry per elective position.
	// Types and scores are shared across tracks.
	ElectiveAnswers [][]string
	ElectiveTypes   []AnswerType
	ElectiveScores  []int
}

// ElectiveLen is the number of questions inside the elective range.
func (d Definition) ElectiveLen() int {
	if !d.HasElective {
		return 0
	}
	return d.ElectiveEnd - d.ElectiveStart + 1
}

// CommonLen is the number of questions outside the elective range.
func (d Definition) CommonLen() int { return d.QuestionCount - d.ElectiveLen() }

// InElective reports whether question n falls inside the elective range.
func (d Definition) InElective(n int) bool {
	return d.HasElective && n >= d.ElectiveStart && n <= d.ElectiveEnd
}

var (
	ErrQuestionCount  = errors.New("question count must be positive")
	ErrElectiveRange  = errors.New("elective range must satisfy 1 <= start < end <= question count")
	ErrTrackCount     = errors.New("elective track count must be positive")
	ErrAnswerKeyShape = errors.New("answer key length does not match segment length")
)

// Validate checks the structural invariants a teacher-built definition must
// hold before it is persisted. Missing type/score entries are not rejected
// here; the resolver degrades those to defaults at grading time.
func (d Definition) Validate() error {
	if d.QuestionCount <= 0 {
		return ErrQuestionCount
	}
	if d.HasElective {
		if d.ElectiveStart < 1 || d.ElectiveStart >= d.ElectiveEnd || d.ElectiveEnd > d.QuestionCount {
			return ErrElectiveRange
		}
		if d.TrackCount <= 0 {
			return ErrTrackCount
		}
		if len(d.ElectiveAnswers) != d.TrackCount {
			return fmt.Errorf("%w: %d tracks, %d keys", ErrAnswerKeyShape, d.TrackCount, len(d.ElectiveAnswers))
		}
		for t, key := range d.ElectiveAnswers {
			if len(key) != d.ElectiveLen() {
				return fmt.Errorf("%w: track %d has %d answers, elective range has %d questions",
					ErrAnswerKeyShape, t+1, len(key), d.ElectiveLen())
			}
		}
	}
	if len(d.CommonAnswers) != d.CommonLen() {
		return fmt.Errorf("%w: %d common answers, %d common questions",
			ErrAnswerKeyShape, len(d.CommonAnswers), d.CommonLen())
	}
	return nil
}
