package survey

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogFieldsOrder(t *testing.T) {
	t.Parallel()

	catalog := DefaultCatalog()
	want := []string{"keycards_home", "keycards_pro", "leads", "b2b_deals", "services"}
	got := catalog.Fields()
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Fields() = %v, want %v", got, want)
		}
	}
}

func TestMetricAccepts(t *testing.T) {
	t.Parallel()

	m := Metric{Choices: []int{0, 1, 2, 3}}
	for _, v := range []int{0, 1, 2, 3} {
		if !m.Accepts(v) {
			t.Fatalf("Accepts(%d) = false, want true", v)
		}
	}
	for _, v := range []int{-1, 4, 5} {
		if m.Accepts(v) {
			t.Fatalf("Accepts(%d) = true, want false", v)
		}
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "survey.yaml")
	doc := `metrics:
  - field: keycards_home
    prompt: "How many home keycards?"
  - field: services
    prompt: "How many services?"
    choices: [0, 1, 2]
    allow_na: true
    skip_departments: [3, 10, 11]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if catalog.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", catalog.Len())
	}

	first, _ := catalog.Metric(0)
	if !first.Accepts(3) {
		t.Fatalf("metric without choices did not get default 0-3 domain")
	}
	if first.Title != "keycards_home" {
		t.Fatalf("Title = %q, want field name fallback", first.Title)
	}
	second, _ := catalog.Metric(1)
	if !second.SkippedFor(10) {
		t.Fatalf("SkippedFor(10) = false, want true")
	}
	if second.SkippedFor(12) {
		t.Fatalf("SkippedFor(12) = true, want false")
	}
	if second.Accepts(3) {
		t.Fatalf("explicit choices ignored")
	}
}

func TestLoadCatalogRejectsBadFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cases := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: "metrics: []\n"},
		{name: "no_field", doc: "metrics:\n  - prompt: \"x?\"\n"},
		{name: "no_prompt", doc: "metrics:\n  - field: leads\n"},
		{name: "duplicate", doc: "metrics:\n  - {field: leads, prompt: a}\n  - {field: leads, prompt: b}\n"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(dir, tc.name+".yaml")
			if err := os.WriteFile(path, []byte(tc.doc), 0o600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := LoadCatalog(path); err == nil {
				t.Fatalf("LoadCatalog(%s) expected error", tc.name)
			}
		})
	}
}

func TestRecordRow(t *testing.T) {
	t.Parallel()

	rec := Record{
		Date:       "2026-08-31",
		Time:       "18:05",
		Subject:    "Ivan Petrov",
		Department: 7,
		Values: map[string]Answer{
			"keycards_home": {Value: 2},
			"keycards_pro":  {NotApplicable: true},
			"leads":         {Value: 0},
		},
	}
	got := rec.Row([]string{"keycards_home", "keycards_pro", "leads", "services"})
	want := []string{"2026-08-31", "18:05", "Ivan Petrov", "7", "2", "", "0", ""}
	if len(got) != len(want) {
		t.Fatalf("Row() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Row()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
