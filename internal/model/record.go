package model

import "time"

// RecordType discriminates candidate record kinds.
type RecordType string

const (
	RecordFaculty RecordType = "faculty"
	RecordProgram RecordType = "program"
)

// HiringStatus is the faculty availability signal copied from the data
// pipeline at fetch time.
type HiringStatus string

const (
	HiringYes     HiringStatus = "hiring"
	HiringMaybe   HiringStatus = "maybe"
	HiringNo      HiringStatus = "not_hiring"
	HiringUnknown HiringStatus = "unknown"
)

// CandidateRecord is a read-only snapshot of a faculty or program entry
// fetched from the external record store, carrying staleness metadata.
type CandidateRecord interface {
	RecordID() string
	RecordType() RecordType
	RecordName() string
	University() string
	Areas() []string
	// FetchedAt is the staleness timestamp attached by the data pipeline.
	FetchedAt() time.Time
	Stale() bool
}

// FacultyRecord is a faculty member snapshot.
type FacultyRecord struct {
	ID             string       `json:"id" yaml:"id"`
	Name           string       `json:"name" yaml:"name"`
	Title          string       `json:"title,omitempty" yaml:"title,omitempty"`
	Email          string       `json:"email,omitempty" yaml:"email,omitempty"`
	UniversityName string       `json:"university" yaml:"university"`
	Department     string       `json:"department,omitempty" yaml:"department,omitempty"`
	ResearchAreas  []string     `json:"research_areas" yaml:"research_areas"`
	HomepageURL    string       `json:"homepage_url,omitempty" yaml:"homepage_url,omitempty"`
	Hiring         HiringStatus `json:"hiring_status" yaml:"hiring_status"`
	HiringProb     float64      `json:"hiring_probability,omitempty" yaml:"hiring_probability,omitempty"`
	HIndex         int          `json:"h_index,omitempty" yaml:"h_index,omitempty"`
	LastScraped    time.Time    `json:"last_scraped" yaml:"last_scraped"`
	IsStale        bool         `json:"stale" yaml:"stale,omitempty"`
}

func (f FacultyRecord) RecordID() string       { return f.ID }
func (f FacultyRecord) RecordType() RecordType { return RecordFaculty }
func (f FacultyRecord) RecordName() string     { return f.Name }
func (f FacultyRecord) University() string     { return f.UniversityName }
func (f FacultyRecord) Areas() []string        { return f.ResearchAreas }
func (f FacultyRecord) FetchedAt() time.Time   { return f.LastScraped }
func (f FacultyRecord) Stale() bool            { return f.IsStale }

// ProgramRecord is a degree program snapshot.
type ProgramRecord struct {
	ID               string    `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	DegreeType       string    `json:"degree_type" yaml:"degree_type"`
	UniversityName   string    `json:"university" yaml:"university"`
	Department       string    `json:"department,omitempty" yaml:"department,omitempty"`
	ResearchAreas    []string  `json:"research_areas" yaml:"research_areas"`
	Deadline         string    `json:"application_deadline,omitempty" yaml:"application_deadline,omitempty"`
	GRERequired      bool      `json:"gre_required" yaml:"gre_required"`
	FundingAvailable bool      `json:"funding_available" yaml:"funding_available"`
	TuitionAnnual    float64   `json:"tuition_annual,omitempty" yaml:"tuition_annual,omitempty"`
	AcceptanceRate   float64   `json:"acceptance_rate,omitempty" yaml:"acceptance_rate,omitempty"`
	LastScraped      time.Time `json:"last_scraped" yaml:"last_scraped"`
	IsStale          bool      `json:"stale" yaml:"stale,omitempty"`
}

func (p ProgramRecord) RecordID() string       { return p.ID }
func (p ProgramRecord) RecordType() RecordType { return RecordProgram }
func (p ProgramRecord) RecordName() string     { return p.Name }
func (p ProgramRecord) University() string     { return p.UniversityName }
func (p ProgramRecord) Areas() []string        { return p.ResearchAreas }
func (p ProgramRecord) FetchedAt() time.Time   { return p.LastScraped }
func (p ProgramRecord) Stale() bool            { return p.IsStale }

// Availability maps a record to its hiring/funding availability signal used
// by the scoring engine's categorical bonus.
func Availability(r CandidateRecord) HiringStatus {
	switch rec := r.(type) {
	case FacultyRecord:
		return rec.Hiring
	case *FacultyRecord:
		return rec.Hiring
	case ProgramRecord:
		if rec.FundingAvailable {
			return HiringYes
		}
		return HiringUnknown
	case *ProgramRecord:
		if rec.FundingAvailable {
			return HiringYes
		}
		return HiringUnknown
	default:
		return HiringUnknown
	}
}
