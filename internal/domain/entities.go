package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrInternal          = errors.New("internal error")
)

// Roles known to the platform.
const (
	RoleAdmin     = "admin"
	RoleRecruiter = "reclutador"
	RoleCandidate = "candidato"
)

// ValidRole reports whether role is one of the fixed platform roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleRecruiter, RoleCandidate:
		return true
	}
	return false
}

// Category classifies a CV by target role family. It is a closed enumeration;
// anything outside the set coerces to CategoryOther at the boundary.
type Category string

const (
	CategoryIT         Category = "it"
	CategorySales      Category = "ventas"
	CategorySupport    Category = "atencion"
	CategoryAccounting Category = "contable"
	CategoryOperations Category = "operario"
	CategoryOther      Category = "otro"
)

// Categories returns all categories in display order.
func Categories() []Category {
	return []Category{CategoryIT, CategorySales, CategorySupport, CategoryAccounting, CategoryOperations, CategoryOther}
}

// ParseCategory maps free input onto the closed category set. Unrecognized
// values coerce to CategoryOther rather than erroring.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryIT, CategorySales, CategorySupport, CategoryAccounting, CategoryOperations, CategoryOther:
		return Category(s)
	}
	return CategoryOther
}

// User is a registered account. Gender and City are normalized lower-case;
// empty means unknown. Lat/Lon are both present or both absent.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	Gender       string    `json:"gender,omitempty"`
	City         string    `json:"city,omitempty"`
	Lat          *float64  `json:"lat,omitempty"`
	Lon          *float64  `json:"lon,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Analysis holds the signals extracted from a CV document. A failed extraction
// yields the zero value plus a parsed_data marker; uploads are never rejected
// because analysis failed.
type Analysis struct {
	Skills              []string       `json:"skills"`
	ExperienceYears     int            `json:"experience_years"`
	Education           []string       `json:"education"`
	ClassificationScore float64        `json:"classification_score"`
	ParsedData          map[string]any `json:"parsed_data"`
}

// CV is one uploaded document. Version is monotonically increasing within
// (UserID, Category), starting at 1. At most one CV per (UserID, Category)
// carries IsPrimary.
type CV struct {
	ID                  int64          `json:"id"`
	UserID              int64          `json:"user_id"`
	Filename            string         `json:"filename"`
	StoredFilename      string         `json:"stored_filename,omitempty"`
	ContentText         string         `json:"-"`
	ParsedData          map[string]any `json:"parsed_data,omitempty"`
	Skills              []string       `json:"skills"`
	ExperienceYears     int            `json:"experience_years"`
	Education           []string       `json:"education"`
	ClassificationScore float64        `json:"classification_score"`
	Category            Category       `json:"category"`
	Version             int            `json:"version"`
	IsPrimary           bool           `json:"is_primary"`
	CreatedAt           time.Time      `json:"created_at"`
}

// Candidate is one row of the ranking input: a user profile joined with one of
// their CV documents. Lat/Lon nil means location unknown.
type Candidate struct {
	UserID          int64    `json:"userId"`
	CVID            int64    `json:"cvId"`
	FullName        string   `json:"fullName"`
	Email           string   `json:"email"`
	Gender          string   `json:"gender"`
	City            string   `json:"city"`
	Lat             *float64 `json:"lat"`
	Lon             *float64 `json:"lon"`
	Skills          []string `json:"skills"`
	ExperienceYears int      `json:"experienceYears"`
	Education       []string `json:"education"`
}

// JobQuery is the transient, request-scoped ranking input. Never persisted.
type JobQuery struct {
	JobDescription  string
	RequiredSkills  []string
	PreferredSkills []string
	MinExperience   int
	Limit           int
	Gender          string
	Cities          []string
	JobLat          *float64
	JobLon          *float64
	MaxDistanceKm   *float64
}

// ScoreReasons is the explainable breakdown attached to every score.
type ScoreReasons struct {
	RequiredMatches       int      `json:"requiredMatches"`
	PreferredMatches      int      `json:"preferredMatches"`
	JobDescriptionMatches int      `json:"jobDescriptionMatches"`
	ExperienceOK          bool     `json:"experienceOK"`
	ExperienceScore       float64  `json:"experienceScore"`
	EducationBonus        float64  `json:"educationBonus"`
	DistanceKm            *float64 `json:"distanceKm,omitempty"`
}

// ScoredCandidate is derived per request and never persisted.
type ScoredCandidate struct {
	Candidate
	Score   float64      `json:"score"`
	Reasons ScoreReasons `json:"reasons"`
}

// CategoryGroup buckets one candidate's CVs for a single category.
type CategoryGroup struct {
	Name      Category `json:"name"`
	PrimaryCV *CV      `json:"primaryCv"`
	LatestCV  *CV      `json:"latestCv"`
	Versions  []CV     `json:"versions"`
}

// RecommendationReasons explains the per-version score of a profile
// recommendation. BaseScore is the CV's stored classification score.
type RecommendationReasons struct {
	RequiredMatches  int     `json:"requiredMatches"`
	PreferredMatches int     `json:"preferredMatches"`
	JDMatches        int     `json:"jdMatches"`
	BaseScore        float64 `json:"baseScore"`
}

// Recommendation is the best matching CV version for a profile query.
type Recommendation struct {
	CV      CV                    `json:"cv"`
	Score   float64               `json:"score"`
	Reasons RecommendationReasons `json:"reasons"`
}

// ProfileQuery carries the optional matching parameters of a profile view.
type ProfileQuery struct {
	Required       []string
	Preferred      []string
	JobDescription string
}

// IsZero reports whether no matching parameter was supplied.
func (q ProfileQuery) IsZero() bool {
	return len(q.Required) == 0 && len(q.Preferred) == 0 && q.JobDescription == ""
}

// Repositories (ports)

type UserRepository interface {
	Create(ctx Context, u User) (int64, error)
	GetByEmail(ctx Context, email string) (User, error)
	Get(ctx Context, id int64) (User, error)
}

// CVRepository persists CV documents. CreateVersioned and SetPrimary must be
// atomic: version assignment and primary-flag transitions within one
// (user, category) scope never interleave.
type CVRepository interface {
	CreateVersioned(ctx Context, cv CV, setPrimary bool) (CV, error)
	Get(ctx Context, id int64) (CV, error)
	SetPrimary(ctx Context, id int64) error
	ListByUser(ctx Context, userID int64, limit int) ([]CV, error)
	Count(ctx Context) (int64, error)
}

// CandidateRepository supplies the ranking input: the join of users with their
// primary CV per category.
type CandidateRepository interface {
	List(ctx Context) ([]Candidate, error)
}

// FileStore keeps the original uploaded documents for later download.
type FileStore interface {
	Save(ctx Context, filename string, data []byte) (string, error)
	Path(stored string) (string, error)
}

// TextExtractor extracts plain text from a document at path.
// Implementations may call external services (e.g., Tika).
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// Analyzer derives skill/experience/education signals from extracted text.
type Analyzer interface {
	Analyze(ctx Context, text string, filters []string) (Analysis, error)
}

// Context is an alias to context.Context; adapters and usecases pass it through.
type Context = context.Context
