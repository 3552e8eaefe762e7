package omr

import (
	"reflect"
	"testing"
)

func TestDefinitionRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
	}{
		{
			name: "no elective",
			def: Definition{
				QuestionCount: 5,
				CommonAnswers: []string{"1", "2", "3", "4", "5"},
				CommonTypes:   []AnswerType{TypeChoice, TypeChoice, TypeChoice, TypeChoice, TypeChoice},
				CommonScores:  []int{2, 2, 2, 2, 2},
			},
		},
		{
			name: "two elective tracks",
			def: Definition{
				QuestionCount:   4,
				HasElective:     true,
				ElectiveStart:   3,
				ElectiveEnd:     4,
				TrackCount:      2,
				CommonAnswers:   []string{"1", "4"},
				CommonTypes:     []AnswerType{TypeChoice, TypeFree},
				CommonScores:    []int{2, 3},
				ElectiveAnswers: [][]string{{"5", "6"}, {"7", "8"}},
				ElectiveTypes:   []AnswerType{TypeChoice, TypeChoice},
				ElectiveScores:  []int{4, 4},
			},
		},
		{
			name: "single question",
			def: Definition{
				QuestionCount: 1,
				CommonAnswers: []string{"3"},
				CommonTypes:   []AnswerType{TypeFree},
				CommonScores:  []int{10},
			},
		},
		{
			name: "empty sequences",
			def:  Definition{QuestionCount: 2},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeDefinition(EncodeDefinition(tc.def))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(got, tc.def) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, tc.def)
			}
		})
	}
}

func TestWireForms(t *testing.T) {
	d := Definition{
		QuestionCount:   4,
		HasElective:     true,
		ElectiveStart:   3,
		ElectiveEnd:     4,
		TrackCount:      2,
		CommonAnswers:   []string{"1", "4"},
		CommonScores:    []int{2, 2},
		ElectiveAnswers: [][]string{{"5", "6"}, {"7", "8"}},
	}
	w := EncodeDefinition(d)
	if w.ElectiveRange != "3-4" {
		t.Errorf("range: expected 3-4, got %q", w.ElectiveRange)
	}
	if w.CommonAnswers != "1,4" {
		t.Errorf("common answers: expected 1,4, got %q", w.CommonAnswers)
	}
	if w.CommonScores != "2,2" {
		t.Errorf("common scores: expected 2,2, got %q", w.CommonScores)
	}
	if w.ElectiveAnswers != "5,6;7,8" {
		t.Errorf("elective answers: expected 5,6;7,8, got %q", w.ElectiveAnswers)
	}
}

func TestParseRange(t *testing.T) {
	start, end, err := ParseRange("23-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 23 || end != 30 {
		t.Fatalf("expected 23..30, got %d..%d", start, end)
	}
	for _, bad := range []string{"", "23", "a-b", "23-"} {
		if _, _, err := ParseRange(bad); err == nil {
			t.Errorf("ParseRange(%q): expected error", bad)
		}
	}
}

func TestDecodeDefinition_MalformedRange(t *testing.T) {
	_, err := DecodeDefinition(Wire{QuestionCount: 10, HasElective: true, ElectiveRange: "oops"})
	if err == nil {
		t.Fatalf("expected error for malformed range on an elective exam")
	}
}

func TestSplitList_EmptyIsEmpty(t *testing.T) {
	if got := SplitList(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := SplitList("2"); !reflect.DeepEqual(got, []string{"2"}) {
		t.Fatalf("single element: got %v", got)
	}
}

func TestParseInts_MalformedSlotDegradesToZero(t *testing.T) {
	got := ParseInts("2,x,3")
	if !reflect.DeepEqual(got, []int{2, 0, 3}) {
		t.Fatalf("expected [2 0 3], got %v", got)
	}
}
