package omr

// GradedQuestion is the verdict for a single question number.
type GradedQuestion struct {
	Number    int    `json:"number"`
	Submitted string `json:"submitted"`
	Correct   string `json:"correct"`
	Score     int    `json:"score"`
	IsCorrect bool   `json:"is_correct"`
}

// Result aggregates one grading pass over a full sheet.
type Result struct {
	CorrectCount   int              `json:"correct_count"`
	EarnedScore    int              `json:"earned_score"`
	TotalScore     int              `json:"total_score"`
	WrongQuestions []int            `json:"wrong_questions"`
	Questions      []GradedQuestion `json:"questions"`
}

// Grade compares a submitted answer sheet against a definition and produces a
// verdict for every question 1..QuestionCount. It is a pure computation over
// already-fetched data: no I/O, no early exit, and malformed entries degrade
// per the resolver's defaults so a result always exists for every question.
//
// answers holds the raw submitted value for question i at index i-1; a short
// slice, an empty string, or the literal "null" all count as unanswered. An
// unanswered question never matches, even when the resolved key is empty.
func Grade(d Definition, answers []string, track int) Result {
	res := Result{Questions: make([]GradedQuestion, 0, d.QuestionCount)}
	for n := 1; n <= d.QuestionCount; n++ {
		slot := d.Resolve(n)
		correct := d.CorrectAnswer(n, track)

		submitted := ""
		if n-1 < len(answers) {
			submitted = answers[n-1]
		}
		ok := answered(submitted) && submitted == correct

		res.TotalScore += slot.Score
		if ok {
			res.CorrectCount++
			res.EarnedScore += slot.Score
		} else {
			res.WrongQuestions = append(res.WrongQuestions, n)
		}
		res.Questions = append(res.Questions, GradedQuestion{
			Number:    n,
			Submitted: submitted,
			Correct:   correct,
			Score:     slot.Score,
			IsCorrect: ok,
		})
	}
	return res
}

func answered(s string) bool { return s != "" && s != Unanswered }
