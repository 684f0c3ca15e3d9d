package usecase

import (
	"math"
	"strings"

	"github.com/hrselector/backend/internal/domain"
	"github.com/hrselector/backend/pkg/geo"
	"github.com/hrselector/backend/pkg/textx"
)

// Scoring weights. These are fixed design constants; changing them changes
// every ranking the platform produces.
const (
	weightRequired     = 3.0
	weightPreferred    = 1.0
	weightJDToken      = 0.5
	weightExpOK        = 1.0
	expScorePerYear    = 0.25
	expScoreCap        = 2.0
	educationBonus     = 0.5
	distanceBonusRange = 50.0 // km; bonus decays linearly to zero here
)

// educationBonusSet are the degree keywords that earn the education bonus.
var educationBonusSet = map[string]struct{}{
	"master":     {},
	"maestría":   {},
	"phd":        {},
	"doctor":     {},
	"ingeniero":  {},
	"engineer":   {},
	"licenciado": {},
	"bachelor":   {},
}

// rankQuery is a JobQuery with its text inputs normalized once per request.
type rankQuery struct {
	required  []string
	preferred []string
	jdTokens  []string
	minExp    int
	jobLat    *float64
	jobLon    *float64
}

func compileQuery(q domain.JobQuery) rankQuery {
	return rankQuery{
		required:  textx.Normalize(q.RequiredSkills),
		preferred: textx.Normalize(q.PreferredSkills),
		jdTokens:  textx.Tokenize(q.JobDescription),
		minExp:    q.MinExperience,
		jobLat:    q.JobLat,
		jobLon:    q.JobLon,
	}
}

// Score computes the multi-factor score for one candidate against a query.
// It is deterministic, side-effect-free and safe to call concurrently.
func Score(c domain.Candidate, q domain.JobQuery) domain.ScoredCandidate {
	return scoreCompiled(c, compileQuery(q))
}

func scoreCompiled(c domain.Candidate, q rankQuery) domain.ScoredCandidate {
	skills := textx.Normalize(c.Skills)
	skillSet := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		skillSet[s] = struct{}{}
	}
	education := textx.Normalize(c.Education)

	reqMatches := countIn(q.required, skillSet)
	prefMatches := countIn(q.preferred, skillSet)
	jdMatches := countIn(q.jdTokens, skillSet)

	expOK := c.ExperienceYears >= q.minExp
	expScore := clamp(float64(c.ExperienceYears-q.minExp)*expScorePerYear, 0, expScoreCap)

	eduBonus := 0.0
	for _, e := range education {
		if _, ok := educationBonusSet[e]; ok {
			eduBonus = educationBonus
			break
		}
	}

	dist, distKnown := geo.Distance(q.jobLat, q.jobLon, c.Lat, c.Lon)
	distBonus := 0.0
	if distKnown {
		d := clamp(dist, 0, distanceBonusRange)
		distBonus = 1 - d/distanceBonusRange
	}

	score := float64(reqMatches)*weightRequired +
		float64(prefMatches)*weightPreferred +
		float64(jdMatches)*weightJDToken +
		expScore +
		eduBonus +
		distBonus
	if expOK {
		score += weightExpOK
	}

	reasons := domain.ScoreReasons{
		RequiredMatches:       reqMatches,
		PreferredMatches:      prefMatches,
		JobDescriptionMatches: jdMatches,
		ExperienceOK:          expOK,
		ExperienceScore:       round2(expScore),
		EducationBonus:        round2(eduBonus),
	}
	if distKnown {
		dk := round1(dist)
		reasons.DistanceKm = &dk
	}

	out := c
	out.Gender = textx.NormalizeOne(c.Gender)
	out.City = textx.NormalizeOne(c.City)
	out.Skills = skills
	out.Education = education
	return domain.ScoredCandidate{Candidate: out, Score: round2(score), Reasons: reasons}
}

// Per-version recommendation weights: a smaller, independent heuristic.
// Not to be confused with the ranking weights above.
const (
	versionWeightRequired  = 2.0
	versionWeightPreferred = 1.0
	versionWeightJDToken   = 0.5
)

// scoreVersion rates one CV version against a profile query. A token counts
// when it appears in the version's skill set or anywhere in its parsed text.
func scoreVersion(cv domain.CV, q domain.ProfileQuery) (float64, domain.RecommendationReasons) {
	skills := textx.Normalize(cv.Skills)
	skillSet := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		skillSet[s] = struct{}{}
	}
	text := ""
	if v, ok := cv.ParsedData["text"].(string); ok {
		text = strings.ToLower(v)
	}
	hit := func(tok string) bool {
		if _, ok := skillSet[tok]; ok {
			return true
		}
		return text != "" && strings.Contains(text, tok)
	}

	reqMatches := 0
	for _, t := range textx.Normalize(q.Required) {
		if hit(t) {
			reqMatches++
		}
	}
	prefMatches := 0
	for _, t := range textx.Normalize(q.Preferred) {
		if hit(t) {
			prefMatches++
		}
	}
	jdMatches := 0
	for _, t := range textx.Tokenize(q.JobDescription) {
		if hit(t) {
			jdMatches++
		}
	}

	score := float64(reqMatches)*versionWeightRequired +
		float64(prefMatches)*versionWeightPreferred +
		float64(jdMatches)*versionWeightJDToken +
		cv.ClassificationScore
	return score, domain.RecommendationReasons{
		RequiredMatches:  reqMatches,
		PreferredMatches: prefMatches,
		JDMatches:        jdMatches,
		BaseScore:        cv.ClassificationScore,
	}
}

func countIn(tokens []string, set map[string]struct{}) int {
	n := 0
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
