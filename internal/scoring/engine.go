// Package scoring computes deterministic match scores between an applicant
// preference snapshot and candidate records. The completion provider is
// never involved: narrative is prose, scores come from here.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/gradpath/advisor/internal/config"
	"github.com/gradpath/advisor/internal/model"
)

// Contributor names attached to MatchResults.
const (
	ContribInterest     = "interest_overlap"
	ContribAvailability = "availability"
	ContribRecency      = "recency"
	ContribHardGate     = "hard_gate"
)

// Engine scores candidate records. It is a pure function of its
// configuration: identical inputs yield bit-identical scores.
type Engine struct {
	cfg config.ScoringConfig
	now time.Time // injectable for testing
}

// New creates an Engine with the given weights.
func New(cfg config.ScoringConfig) *Engine {
	return &Engine{cfg: cfg, now: time.Now().UTC()}
}

// WithNow sets a fixed reference time for recency scoring.
func (e *Engine) WithNow(t time.Time) *Engine {
	e.now = t
	return e
}

// Score computes the weighted match between the applicant preferences and a
// candidate record. A violated hard constraint forces the score to zero
// regardless of the other sub-scores.
func (e *Engine) Score(prefs model.Preferences, rec model.CandidateRecord) model.MatchResult {
	result := model.MatchResult{
		RecordID:   rec.RecordID(),
		RecordType: rec.RecordType(),
		Name:       rec.RecordName(),
		University: rec.University(),
		Status:     model.Availability(rec),
		StaleAsOf:  rec.FetchedAt(),
	}

	if gate := violatedGate(prefs, rec); gate != "" {
		result.Score = 0
		result.Contributors = []model.ScoreContributor{
			{Name: ContribHardGate, Weight: 0, Value: 0},
		}
		result.Detail = map[string]any{"violated": gate}
		return result
	}

	overlap := InterestOverlap(prefs.ResearchInterests, rec.Areas())
	avail := availabilityBonus(rec)
	recency := e.recency(rec.FetchedAt())

	result.Contributors = []model.ScoreContributor{
		{Name: ContribInterest, Weight: e.cfg.InterestWeight, Value: overlap},
		{Name: ContribAvailability, Weight: e.cfg.AvailabilityWeight, Value: avail},
		{Name: ContribRecency, Weight: e.cfg.RecencyWeight, Value: recency},
	}

	score := e.cfg.InterestWeight*overlap +
		e.cfg.AvailabilityWeight*avail +
		e.cfg.RecencyWeight*recency

	result.Score = round4(math.Min(1, math.Max(0, score)))
	return result
}

// Sort orders matches deterministically: score descending, then more recent
// staleness timestamp, then lexical name order. Wall-clock completion order
// of agents never leaks into the visible ranking.
func Sort(matches []model.MatchResult) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.StaleAsOf.Equal(b.StaleAsOf) {
			return a.StaleAsOf.After(b.StaleAsOf)
		}
		return a.Name < b.Name
	})
}

// InterestOverlap computes the normalized textual overlap between stated
// interests and a record's research-area tags. It is monotone: adding a
// matching tag never lowers the value.
func InterestOverlap(interests, areas []string) float64 {
	if len(interests) == 0 || len(areas) == 0 {
		return 0
	}

	folded := make([]string, len(interests))
	for i, in := range interests {
		folded[i] = foldText(in)
	}

	matched := 0
	for _, area := range areas {
		fa := foldText(area)
		for _, fi := range folded {
			if fa == fi || strings.Contains(fa, fi) || strings.Contains(fi, fa) {
				matched++
				break
			}
		}
	}
	return round4(float64(matched) / float64(len(areas)))
}

func availabilityBonus(rec model.CandidateRecord) float64 {
	switch model.Availability(rec) {
	case model.HiringYes:
		return 1.0
	case model.HiringMaybe:
		return 0.5
	default:
		return 0
	}
}

// recency decays exponentially with the staleness age: half the bonus after
// each configured half-life.
func (e *Engine) recency(fetchedAt time.Time) float64 {
	if fetchedAt.IsZero() || e.cfg.DecayHalfLifeDays <= 0 {
		return 0
	}
	ageDays := e.now.Sub(fetchedAt).Hours() / 24
	if ageDays <= 0 {
		return 1
	}
	return round4(math.Exp2(-ageDays / e.cfg.DecayHalfLifeDays))
}

// violatedGate returns the name of the first violated hard constraint, or
// the empty string. Gates apply to the record kinds they can be checked on.
func violatedGate(prefs model.Preferences, rec model.CandidateRecord) string {
	prog, ok := rec.(model.ProgramRecord)
	if !ok {
		if pp, isPtr := rec.(*model.ProgramRecord); isPtr {
			prog, ok = *pp, true
		}
	}
	if !ok {
		return ""
	}

	if prefs.FundingRequired && !prog.FundingAvailable {
		return "funding_required"
	}
	if prefs.NoGRE && prog.GRERequired {
		return "gre_required"
	}
	if prefs.MaxTuition > 0 && prog.TuitionAnnual > prefs.MaxTuition {
		return "max_tuition"
	}
	if len(prefs.DegreeTypes) > 0 && !containsFold(prefs.DegreeTypes, prog.DegreeType) {
		return "degree_type"
	}
	return ""
}

func containsFold(list []string, v string) bool {
	fv := foldText(v)
	for _, item := range list {
		if foldText(item) == fv {
			return true
		}
	}
	return false
}

var folder = cases.Fold()

func foldText(s string) string {
	return strings.TrimSpace(folder.String(s))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
