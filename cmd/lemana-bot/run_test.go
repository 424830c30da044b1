package main

import (
	"testing"
	"time"
)

func TestSplitCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		word string
		rest string
	}{
		{"/start", "/start", ""},
		{"/START", "/start", ""},
		{"/period 01.08.2026 31.08.2026", "/period", "01.08.2026 31.08.2026"},
		{"/today@lemana_mp2_bot", "/today", ""},
		{"/help@lemana_mp2_bot extra", "/help", "extra"},
		{"17", "17", ""},
		{"просто текст", "просто", "текст"},
	}
	for _, tc := range cases {
		word, rest := splitCommand(tc.in)
		if word != tc.word || rest != tc.rest {
			t.Fatalf("splitCommand(%q) = (%q, %q), want (%q, %q)", tc.in, word, rest, tc.word, tc.rest)
		}
	}
}

func TestParsePeriodArgs(t *testing.T) {
	t.Parallel()

	from, to, err := parsePeriodArgs("01.08.2026 31.08.2026")
	if err != nil {
		t.Fatalf("parsePeriodArgs() error = %v", err)
	}
	if got := from.Format("2006-01-02"); got != "2026-08-01" {
		t.Fatalf("from = %s, want 2026-08-01", got)
	}
	if got := to.Format("2006-01-02"); got != "2026-08-31" {
		t.Fatalf("to = %s, want 2026-08-31", got)
	}
}

func TestParsePeriodArgsSwapsReversedDates(t *testing.T) {
	t.Parallel()

	from, to, err := parsePeriodArgs("31.08.2026 01.08.2026")
	if err != nil {
		t.Fatalf("parsePeriodArgs() error = %v", err)
	}
	if from.After(to) {
		t.Fatalf("from %v after to %v", from, to)
	}
}

func TestParsePeriodArgsRejectsBadInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "01.08.2026", "01.08.2026 31.08.2026 01.09.2026", "2026-08-01 2026-08-31", "abc def"} {
		if _, _, err := parsePeriodArgs(in); err == nil {
			t.Fatalf("parsePeriodArgs(%q) error = nil, want error", in)
		}
	}
}

func TestPeriodDatesAreDateOnly(t *testing.T) {
	t.Parallel()

	from, _, err := parsePeriodArgs("05.03.2026 06.03.2026")
	if err != nil {
		t.Fatalf("parsePeriodArgs() error = %v", err)
	}
	if from.Hour() != 0 || from.Minute() != 0 {
		t.Fatalf("from carries time-of-day: %v", from)
	}
	if !from.Equal(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from = %v", from)
	}
}
