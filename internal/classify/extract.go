package classify

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/gradpath/advisor/internal/model"
)

var folder = cases.Fold()

// Canonical research areas keyed by the aliases applicants actually type.
var researchAliases = map[string][]string{
	"machine learning":            {"machine learning", " ml ", "deep learning"},
	"artificial intelligence":     {"artificial intelligence", " ai "},
	"computer vision":             {"computer vision", " cv ", "image processing"},
	"natural language processing": {"natural language", " nlp ", "text processing"},
	"robotics":                    {"robotics", "robot", "autonomous"},
	"systems":                     {"distributed systems", "operating systems", "systems"},
	"security":                    {"security", "cryptography", "privacy"},
	"theory":                      {"theory", "algorithms", "complexity"},
	"databases":                   {"database", "data management", "big data"},
	"hci":                         {" hci ", "human computer interaction", "user interface"},
	"data science":                {"data science", "analytics"},
	"quantum computing":           {"quantum"},
}

var universityNames = []string{
	"Stanford", "MIT", "Berkeley", "CMU", "Caltech", "Harvard", "Princeton",
	"Cornell", "Michigan", "Georgia Tech", "UIUC", "Washington",
}

var degreeAliases = map[string][]string{
	"PhD":  {"phd", "ph.d", "doctorate", "doctoral"},
	"MS":   {" ms ", "m.s", "msc", "masters", "master's"},
	"MEng": {"meng", "m.eng", "master of engineering"},
}

// ExtractCriteria pulls structured search filters out of a message using
// the same keyword tables the lexical classifier matches on.
func ExtractCriteria(message string) model.SearchCriteria {
	// Pad so word-boundary aliases like " ml " match at the edges.
	lower := " " + folder.String(message) + " "

	var criteria model.SearchCriteria

	for _, uni := range universityNames {
		if strings.Contains(lower, folder.String(uni)) {
			criteria.Universities = append(criteria.Universities, uni)
		}
	}

	for _, area := range researchAreaOrder {
		for _, alias := range researchAliases[area] {
			if strings.Contains(lower, alias) {
				criteria.ResearchAreas = append(criteria.ResearchAreas, area)
				break
			}
		}
	}

	for _, degree := range degreeOrder {
		for _, alias := range degreeAliases[degree] {
			if strings.Contains(lower, alias) {
				criteria.DegreeTypes = append(criteria.DegreeTypes, degree)
				break
			}
		}
	}

	criteria.HiringFocus = strings.Contains(lower, "hiring") || strings.Contains(lower, "taking students")
	criteria.FundingNeeded = strings.Contains(lower, "funding") || strings.Contains(lower, "funded") || strings.Contains(lower, "financial")
	criteria.NoGRE = strings.Contains(lower, "no gre") || strings.Contains(lower, "without gre")

	return criteria
}

// Fixed iteration orders keep extraction deterministic across runs.
var researchAreaOrder = []string{
	"machine learning", "artificial intelligence", "computer vision",
	"natural language processing", "robotics", "systems", "security",
	"theory", "databases", "hci", "data science", "quantum computing",
}

var degreeOrder = []string{"PhD", "MS", "MEng"}
