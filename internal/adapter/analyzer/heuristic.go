// Package analyzer derives rough skill, experience and education signals from
// extracted CV text using keyword heuristics. It is deliberately not semantic
// matching; the dictionary is configurable via YAML.
package analyzer

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hrselector/backend/internal/domain"
	"github.com/hrselector/backend/pkg/textx"
)

//go:embed skills.yaml
var defaultDictionary []byte

// maxExperienceYears caps what the regex may extract from free text.
const maxExperienceYears = 40

// experienceRe matches phrases like "5 años" or "12 years".
var experienceRe = regexp.MustCompile(`(\d{1,2})\s*(años|year|years)`)

// Dictionary is the keyword configuration for the heuristic analyzer.
type Dictionary struct {
	Skills    []string `yaml:"skills"`
	Education []string `yaml:"education"`
}

// Heuristic implements domain.Analyzer with dictionary lookups.
type Heuristic struct {
	dict Dictionary
}

// New builds an analyzer from the embedded default dictionary.
func New() *Heuristic {
	var d Dictionary
	// The embedded dictionary is known-good; a parse failure here is a build
	// defect, not a runtime condition.
	if err := yaml.Unmarshal(defaultDictionary, &d); err != nil {
		panic(fmt.Sprintf("analyzer: embedded dictionary invalid: %v", err))
	}
	return &Heuristic{dict: normalizeDict(d)}
}

// NewFromFile builds an analyzer from a YAML dictionary file.
func NewFromFile(path string) (*Heuristic, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=analyzer.load: %w", err)
	}
	var d Dictionary
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("op=analyzer.parse: %w", err)
	}
	return &Heuristic{dict: normalizeDict(d)}, nil
}

func normalizeDict(d Dictionary) Dictionary {
	return Dictionary{
		Skills:    textx.Normalize(d.Skills),
		Education: textx.Normalize(d.Education),
	}
}

// Analyze scans the lower-cased text for dictionary hits and an experience
// phrase. It never fails on content; empty text simply yields empty signals.
func (h *Heuristic) Analyze(_ domain.Context, text string, filters []string) (domain.Analysis, error) {
	lower := strings.ToLower(text)

	skills := make([]string, 0)
	for _, s := range h.dict.Skills {
		if strings.Contains(lower, s) {
			skills = append(skills, s)
		}
	}

	years := 0
	if m := experienceRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			years = n
			if years > maxExperienceYears {
				years = maxExperienceYears
			}
		}
	}

	education := make([]string, 0)
	for _, k := range h.dict.Education {
		if strings.Contains(lower, k) {
			education = append(education, k)
		}
	}

	score := float64(len(skills)) / 10
	if years >= 3 {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}

	parsed := map[string]any{
		"skills":               skills,
		"experience_years":     years,
		"education":            education,
		"classification_score": score,
		"text":                 text,
	}
	if len(filters) > 0 {
		parsed["filters"] = textx.Normalize(filters)
	}

	return domain.Analysis{
		Skills:              skills,
		ExperienceYears:     years,
		Education:           education,
		ClassificationScore: score,
		ParsedData:          parsed,
	}, nil
}
