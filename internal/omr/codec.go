package omr

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire is the delimited-string form of a definition as it is stored: scalar
// sequences comma-joined, per-track elective keys semicolon-joined, the
// elective range as "start-end". The encoding is a compatibility contract;
// decode at the boundary, work against Definition, re-encode only to persist.
type Wire struct {
	QuestionCount   int    `json:"question_count"`
	HasElective     bool   `json:"has_elective"`
	TrackCount      int    `json:"elective_track_count,omitempty"`
	ElectiveRange   string `json:"elective_range,omitempty"`
	CommonAnswers   string `json:"common_answers"`
	CommonScores    string `json:"common_scores"`
	CommonTypes     string `json:"common_types"`
	ElectiveAnswers string `json:"elective_answers,omitempty"`
	ElectiveScores  string `json:"elective_scores,omitempty"`
	ElectiveTypes   string `json:"elective_types,omitempty"`
}

// DecodeDefinition parses the wire form. Only a malformed elective range is a
// hard error; everything else tolerates missing entries, which the resolver
// later degrades to defaults.
func DecodeDefinition(w Wire) (Definition, error) {
	d := Definition{
		QuestionCount: w.QuestionCount,
		HasElective:   w.HasElective,
		TrackCount:    w.TrackCount,
		CommonAnswers: SplitList(w.CommonAnswers),
		CommonTypes:   parseTypes(w.CommonTypes),
		CommonScores:  ParseInts(w.CommonScores),
	}
	if w.HasElective {
		start, end, err := ParseRange(w.ElectiveRange)
		if err != nil {
			return Definition{}, err
		}
		d.ElectiveStart, d.ElectiveEnd = start, end
		d.ElectiveAnswers = ParseTracks(w.ElectiveAnswers)
		d.ElectiveTypes = parseTypes(w.ElectiveTypes)
		d.ElectiveScores = ParseInts(w.ElectiveScores)
	}
	return d, nil
}

// EncodeDefinition produces the wire form. DecodeDefinition(EncodeDefinition(d))
// reproduces d exactly for any valid definition.
func EncodeDefinition(d Definition) Wire {
	w := Wire{
		QuestionCount: d.QuestionCount,
		HasElective:   d.HasElective,
		CommonAnswers: JoinList(d.CommonAnswers),
		CommonScores:  JoinInts(d.CommonScores),
		CommonTypes:   joinTypes(d.CommonTypes),
	}
	if d.HasElective {
		w.TrackCount = d.TrackCount
		w.ElectiveRange = FormatRange(d.ElectiveStart, d.ElectiveEnd)
		w.ElectiveAnswers = JoinTracks(d.ElectiveAnswers)
		w.ElectiveScores = JoinInts(d.ElectiveScores)
		w.ElectiveTypes = joinTypes(d.ElectiveTypes)
	}
	return w
}

// ParseRange parses an inclusive "start-end" pair.
func ParseRange(s string) (start, end int, err error) {
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed elective range %q", s)
	}
	start, err = strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed elective range %q", s)
	}
	end, err = strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed elective range %q", s)
	}
	return start, end, nil
}

// FormatRange renders an inclusive range as "start-end".
func FormatRange(start, end int) string {
	return strconv.Itoa(start) + "-" + strconv.Itoa(end)
}

// SplitList splits a comma-joined sequence. An empty string is an empty
// sequence, not one empty element.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// JoinList is the inverse of SplitList.
func JoinList(xs []string) string { return strings.Join(xs, ",") }

// ParseInts splits a comma-joined integer sequence. A slot that fails to
// parse becomes 0, matching the score-lookup degradation rule.
func ParseInts(s string) []int {
	parts := SplitList(s)
	if parts == nil {
		return nil
	}
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out[i] = v
	}
	return out
}

// JoinInts is the inverse of ParseInts.
func JoinInts(xs []int) string {
	if len(xs) == 0 {
		return ""
	}
	parts := make([]string, len(xs))
	for i, v := range xs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// ParseTracks splits a semicolon-joined list of comma-joined per-track keys,
// e.g. "1,2,3,4;5,1,2,3" for two tracks of four elective questions.
func ParseTracks(s string) [][]string {
	if s == "" {
		return nil
	}
	groups := strings.Split(s, ";")
	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = SplitList(g)
	}
	return out
}

// JoinTracks is the inverse of ParseTracks.
func JoinTracks(tracks [][]string) string {
	if len(tracks) == 0 {
		return ""
	}
	groups := make([]string, len(tracks))
	for i, t := range tracks {
		groups[i] = JoinList(t)
	}
	return strings.Join(groups, ";")
}

func parseTypes(s string) []AnswerType {
	parts := SplitList(s)
	if parts == nil {
		return nil
	}
	out := make([]AnswerType, len(parts))
	for i, p := range parts {
		out[i] = AnswerType(p)
	}
	return out
}

func joinTypes(ts []AnswerType) string {
	if len(ts) == 0 {
		return ""
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}
