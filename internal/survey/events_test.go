package survey

import (
	"testing"
)

func TestDecodeCallback(t *testing.T) {
	t.Parallel()

	cases := []struct {
		data string
		want Event
	}{
		{data: "dep:7", want: DepartmentEvent{Department: 7}},
		{data: "dep:15", want: DepartmentEvent{Department: 15}},
		{data: "q0:2", want: AnswerEvent{Step: 0, Value: 2}},
		{data: "q4:na", want: AnswerEvent{Step: 4, NotApplicable: true}},
		{data: "q2:manual", want: ManualRequestEvent{Step: 2}},
		{data: "start_new", want: StartEvent{}},
		{data: "retry_save", want: RetrySaveEvent{}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.data, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeCallback(tc.data)
			if err != nil {
				t.Fatalf("DecodeCallback(%q) error = %v", tc.data, err)
			}
			if got != tc.want {
				t.Fatalf("DecodeCallback(%q) = %#v, want %#v", tc.data, got, tc.want)
			}
		})
	}
}

func TestDecodeCallbackRejectsMalformed(t *testing.T) {
	t.Parallel()

	invalid := []string{
		"",
		"dep:",
		"dep:abc",
		"q:1",
		"qx:1",
		"q1",
		"q1:",
		"q-1:2",
		"unknown",
	}
	for _, data := range invalid {
		if _, err := DecodeCallback(data); err == nil {
			t.Fatalf("DecodeCallback(%q) expected error", data)
		}
	}
}

func TestCallbackRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		data string
		want Event
	}{
		{data: DepartmentCallback(3), want: DepartmentEvent{Department: 3}},
		{data: AnswerCallback(1, 3), want: AnswerEvent{Step: 1, Value: 3}},
		{data: AnswerNACallback(2), want: AnswerEvent{Step: 2, NotApplicable: true}},
		{data: ManualCallback(0), want: ManualRequestEvent{Step: 0}},
		{data: StartNewCallback(), want: StartEvent{}},
		{data: RetrySaveCallback(), want: RetrySaveEvent{}},
	}
	for _, tc := range cases {
		got, err := DecodeCallback(tc.data)
		if err != nil {
			t.Fatalf("DecodeCallback(%q) error = %v", tc.data, err)
		}
		if got != tc.want {
			t.Fatalf("DecodeCallback(%q) = %#v, want %#v", tc.data, got, tc.want)
		}
	}
}
