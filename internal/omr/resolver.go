package omr

// Slot locates one question on the sheet: which segment it belongs to, its
// position inside that segment's sequences, and its resolved type and weight.
type Slot struct {
	Number   int        `json:"number"`
	Elective bool       `json:"elective"`
	Pos      int        `json:"pos"`
	Type     AnswerType `json:"type"`
	Score    int        `json:"score"`
}

// Resolve maps an absolute question number (1-based) to its slot. Every
// number 1..QuestionCount resolves to exactly one segment. A missing or empty
// type entry degrades to multiple-choice; a missing score entry degrades to 0.
func (d Definition) Resolve(n int) Slot {
	s := Slot{Number: n}
	if d.InElective(n) {
		s.Elective = true
		s.Pos = n - d.ElectiveStart
		s.Type = typeAt(d.ElectiveTypes, s.Pos)
		s.Score = scoreAt(d.ElectiveScores, s.Pos)
		return s
	}
	// Common position skips over the elided elective block.
	s.Pos = n - 1
	if d.HasElective && n > d.ElectiveEnd {
		s.Pos -= d.ElectiveLen()
	}
	s.Type = typeAt(d.CommonTypes, s.Pos)
	s.Score = scoreAt(d.CommonScores, s.Pos)
	return s
}

// CorrectAnswer resolves the key for question n. track is the 1-based elective
// track chosen by the submitter; on an elective question a missing or
// out-of-range track resolves to "" so the question can never be correct.
func (d Definition) CorrectAnswer(n, track int) string {
	s := d.Resolve(n)
	if !s.Elective {
		if s.Pos < 0 || s.Pos >= len(d.CommonAnswers) {
			return ""
		}
		return d.CommonAnswers[s.Pos]
	}
	if track < 1 || track > len(d.ElectiveAnswers) {
		return ""
	}
	key := d.ElectiveAnswers[track-1]
	if s.Pos >= len(key) {
		return ""
	}
	return key[s.Pos]
}

func typeAt(ts []AnswerType, pos int) AnswerType {
	if pos < 0 || pos >= len(ts) || ts[pos] == "" {
		return TypeChoice
	}
	return ts[pos]
}

func scoreAt(ss []int, pos int) int {
	if pos < 0 || pos >= len(ss) {
		return 0
	}
	return ss[pos]
}
