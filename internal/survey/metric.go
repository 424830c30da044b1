package survey

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DepartmentMin and DepartmentMax bound the selectable department codes.
	DepartmentMin = 1
	DepartmentMax = 15

	// ManualValueMax caps manually typed answers.
	ManualValueMax = 999
)

// Metric is one survey question bound to a spreadsheet column. Metrics are
// defined once at startup and never mutated.
type Metric struct {
	Field string `yaml:"field"`
	// Title is the short human name used in summaries; Prompt is the full
	// question text.
	Title           string `yaml:"title"`
	Prompt          string `yaml:"prompt"`
	Choices         []int  `yaml:"choices"`
	AllowNA         bool   `yaml:"allow_na"`
	SkipDepartments []int  `yaml:"skip_departments"`
}

// SkippedFor reports whether this metric is force-zeroed for the department
// instead of being asked.
func (m Metric) SkippedFor(department int) bool {
	for _, d := range m.SkipDepartments {
		if d == department {
			return true
		}
	}
	return false
}

// Accepts reports whether v is one of the metric's button choices.
func (m Metric) Accepts(v int) bool {
	for _, c := range m.Choices {
		if c == v {
			return true
		}
	}
	return false
}

type Catalog struct {
	metrics []Metric
}

// DefaultCatalog returns the built-in daily questionnaire: five metrics,
// button choices 0-3, "not applicable" allowed everywhere. keycards_pro is
// skipped for departments 12-15, services for departments 3, 10 and 11.
func DefaultCatalog() *Catalog {
	return &Catalog{metrics: []Metric{
		{
			Field:   "keycards_home",
			Title:   "Ключ-карты дом",
			Prompt:  "Сколько <b>ключ-карт для дома</b> ты сегодня выдал(а)?",
			Choices: []int{0, 1, 2, 3},
			AllowNA: true,
		},
		{
			Field:           "keycards_pro",
			Title:           "Ключ-карты ПРО",
			Prompt:          "Сколько <b>ключ-карт ПРО</b> ты сегодня выдал(а)?",
			Choices:         []int{0, 1, 2, 3},
			AllowNA:         true,
			SkipDepartments: []int{12, 13, 14, 15},
		},
		{
			Field:   "leads",
			Title:   "Лиды",
			Prompt:  "Сколько <b>лидов</b> ты сегодня сгенерил(а)?",
			Choices: []int{0, 1, 2, 3},
			AllowNA: true,
		},
		{
			Field:   "b2b_deals",
			Title:   "Акции B2B",
			Prompt:  "Сколько <b>акций для B2B</b> ты сегодня продал(а)?",
			Choices: []int{0, 1, 2, 3},
			AllowNA: true,
		},
		{
			Field:           "services",
			Title:           "Услуги",
			Prompt:          "Сколько <b>услуг</b> ты сегодня продал(а)?",
			Choices:         []int{0, 1, 2, 3},
			AllowNA:         true,
			SkipDepartments: []int{3, 10, 11},
		},
	}}
}

type catalogFile struct {
	Metrics []Metric `yaml:"metrics"`
}

// LoadCatalog reads a metric catalog from a YAML file. Metrics that omit
// choices get the default 0-3 domain.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	if len(file.Metrics) == 0 {
		return nil, fmt.Errorf("catalog %s: no metrics defined", path)
	}
	seen := make(map[string]bool, len(file.Metrics))
	for i := range file.Metrics {
		m := &file.Metrics[i]
		m.Field = strings.TrimSpace(m.Field)
		if m.Field == "" {
			return nil, fmt.Errorf("catalog %s: metric %d has no field name", path, i)
		}
		if seen[m.Field] {
			return nil, fmt.Errorf("catalog %s: duplicate field %q", path, m.Field)
		}
		seen[m.Field] = true
		if strings.TrimSpace(m.Prompt) == "" {
			return nil, fmt.Errorf("catalog %s: metric %q has no prompt", path, m.Field)
		}
		if strings.TrimSpace(m.Title) == "" {
			m.Title = m.Field
		}
		if len(m.Choices) == 0 {
			m.Choices = []int{0, 1, 2, 3}
		}
	}
	return &Catalog{metrics: file.Metrics}, nil
}

func (c *Catalog) Len() int {
	return len(c.metrics)
}

// Metric returns the metric at step index i.
func (c *Catalog) Metric(i int) (Metric, bool) {
	if i < 0 || i >= len(c.metrics) {
		return Metric{}, false
	}
	return c.metrics[i], true
}

// Fields returns the metric field names in question order, matching the
// spreadsheet column order after the fixed prefix columns.
func (c *Catalog) Fields() []string {
	out := make([]string, len(c.metrics))
	for i, m := range c.metrics {
		out[i] = m.Field
	}
	return out
}

// Titles maps field names to their short display names.
func (c *Catalog) Titles() map[string]string {
	out := make(map[string]string, len(c.metrics))
	for _, m := range c.metrics {
		out[m.Field] = m.Title
	}
	return out
}
