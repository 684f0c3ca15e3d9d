package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hrselector/backend/internal/adapter/observability"
	"github.com/hrselector/backend/internal/config"
	"github.com/hrselector/backend/internal/domain"
	"github.com/hrselector/backend/internal/usecase"
	"github.com/hrselector/backend/pkg/textx"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Auth       usecase.AuthService
	CVs        usecase.CVService
	Profiles   usecase.ProfileService
	Ranking    usecase.RankingService
	Tokens     TokenManager
	DBCheck    func(ctx context.Context) error
	TikaCheck  func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, auth usecase.AuthService, cvs usecase.CVService, profiles usecase.ProfileService, ranking usecase.RankingService, tokens TokenManager, dbCheck, tikaCheck, redisCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Auth: auth, CVs: cvs, Profiles: profiles, Ranking: ranking, Tokens: tokens, DBCheck: dbCheck, TikaCheck: tikaCheck, RedisCheck: redisCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		verrs := map[string]string{}
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				verrs[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
		return false
	}
	return true
}

// authView is the account payload returned by register and login.
type authView struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// RegisterHandler creates an account and returns a signed token.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string   `json:"email" validate:"required,email,max=254"`
			Password string   `json:"password" validate:"required,min=8,max=128"`
			FullName string   `json:"full_name" validate:"required,max=200"`
			Role     string   `json:"role" validate:"required"`
			Gender   string   `json:"gender" validate:"max=40"`
			City     string   `json:"city" validate:"max=120"`
			Lat      *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
			Lon      *float64 `json:"lon" validate:"omitempty,min=-180,max=180"`
		}
		if !decodeAndValidate(w, r, &req) {
			return
		}
		user, err := s.Auth.Register(r.Context(), usecase.RegisterInput{
			Email:    req.Email,
			Password: req.Password,
			FullName: req.FullName,
			Role:     req.Role,
			Gender:   req.Gender,
			City:     req.City,
			Lat:      req.Lat,
			Lon:      req.Lon,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		token, err := s.Tokens.Issue(user)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, authView{Token: token, User: user})
	}
}

// LoginHandler verifies credentials and returns a signed token.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email" validate:"required,max=254"`
			Password string `json:"password" validate:"required,max=128"`
		}
		if !decodeAndValidate(w, r, &req) {
			return
		}
		user, err := s.Auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		token, err := s.Tokens.Issue(user)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, authView{Token: token, User: user})
	}
}

// UploadCVHandler handles multipart upload of a single CV document.
func (s *Server) UploadCVHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes*2)
		if err := r.ParseMultipartForm(maxBytes * 2); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
					Code: "INVALID_ARGUMENT", Message: "payload too large",
					Details: map[string]any{"max_mb": s.Cfg.MaxUploadMB},
				}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		file, header, err := r.FormFile("cv")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: cv file required", domain.ErrInvalidArgument), map[string]string{"field": "cv"})
			return
		}
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: cv read: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		// Extension allowlist first, then content sniffing.
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{
				Code: "INVALID_ARGUMENT", Message: "only .pdf uploads are accepted",
				Details: map[string]any{"filename": header.Filename},
			}})
			return
		}
		if m := mimetype.Detect(data); !m.Is("application/pdf") {
			writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{
				Code: "INVALID_ARGUMENT", Message: "file content is not a PDF",
				Details: map[string]any{"mime": m.String(), "filename": header.Filename},
			}})
			return
		}

		userID := UserIDFrom(r.Context())
		if userID == 0 {
			writeError(w, r, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized), nil)
			return
		}

		category := domain.ParseCategory(strings.ToLower(strings.TrimSpace(r.FormValue("category"))))
		setPrimary := r.FormValue("set_primary") == "true"
		filters := textx.SplitCSV(r.FormValue("filters"))

		cv, err := s.CVs.Upload(r.Context(), usecase.UploadInput{
			UserID:     userID,
			Filename:   header.Filename,
			Data:       data,
			Category:   category,
			SetPrimary: setPrimary,
			Filters:    filters,
		})
		if err != nil {
			observability.ObserveUpload(string(category), "error")
			writeError(w, r, err, nil)
			return
		}
		observability.ObserveUpload(string(category), "ok")
		writeJSON(w, http.StatusCreated, map[string]any{
			"cv_id":      cv.ID,
			"category":   cv.Category,
			"version":    cv.Version,
			"is_primary": cv.IsPrimary,
			"analysis": map[string]any{
				"skills":               cv.Skills,
				"experience_years":     cv.ExperienceYears,
				"education":            cv.Education,
				"classification_score": cv.ClassificationScore,
			},
		})
	}
}

// CVCountHandler reports how many CV documents are stored.
func (s *Server) CVCountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.CVs.Count(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"count": n})
	}
}

// GetCVHandler returns one CV record. Candidates may only read their own.
func (s *Server) GetCVHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cv, ok := s.loadOwnedCV(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, cv)
	}
}

// DownloadCVHandler streams the original uploaded document.
func (s *Server) DownloadCVHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cv, ok := s.loadOwnedCV(w, r)
		if !ok {
			return
		}
		name, path, err := s.CVs.DownloadPath(r.Context(), cv.ID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.Header().Set("Content-Type", "application/pdf")
		http.ServeFile(w, r, path)
	}
}

// SetPrimaryHandler promotes a CV to primary within its category.
func (s *Server) SetPrimaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cv, ok := s.loadOwnedCV(w, r)
		if !ok {
			return
		}
		if err := s.CVs.SetPrimary(r.Context(), cv.ID); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cv_id": cv.ID, "is_primary": true})
	}
}

// loadOwnedCV resolves {id} and enforces ownership: candidates see only their
// own documents, recruiters and admins see everything.
func (s *Server) loadOwnedCV(w http.ResponseWriter, r *http.Request) (domain.CV, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, fmt.Errorf("%w: invalid cv id", domain.ErrInvalidArgument), nil)
		return domain.CV{}, false
	}
	cv, err := s.CVs.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return domain.CV{}, false
	}
	claims, _ := ClaimsFrom(r.Context())
	if claims.Role == domain.RoleCandidate && cv.UserID != UserIDFrom(r.Context()) {
		writeError(w, r, fmt.Errorf("%w: not your document", domain.ErrForbidden), nil)
		return domain.CV{}, false
	}
	return cv, true
}

// CandidateProfileHandler assembles the grouped CV view for one candidate,
// optionally with a best-version recommendation driven by query parameters.
func (s *Server) CandidateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, fmt.Errorf("%w: invalid user id", domain.ErrInvalidArgument), nil)
			return
		}
		q := domain.ProfileQuery{
			Required:       textx.SplitCSV(r.URL.Query().Get("required")),
			Preferred:      textx.SplitCSV(r.URL.Query().Get("preferred")),
			JobDescription: r.URL.Query().Get("jd"),
		}
		profile, err := s.Profiles.Get(r.Context(), id, q)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

type rankingFilters struct {
	Gender        string   `json:"gender" validate:"max=40"`
	Cities        []string `json:"cities" validate:"max=50,dive,max=120"`
	Lat           *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lon           *float64 `json:"lon" validate:"omitempty,min=-180,max=180"`
	MaxDistanceKm *float64 `json:"maxDistanceKm" validate:"omitempty,min=0,max=20000"`
}

// rankingRequest carries the filter fields flat; the nested `filters` object
// is accepted as an alias and wins when both forms are present. Negative
// limits are not a validation error: the ranking pipeline clamps them to one.
type rankingRequest struct {
	JobDescription  string          `json:"jobDescription" validate:"max=5000"`
	RequiredSkills  []string        `json:"requiredSkills" validate:"max=50,dive,max=100"`
	PreferredSkills []string        `json:"preferredSkills" validate:"max=50,dive,max=100"`
	MinExperience   int             `json:"minExperience" validate:"min=0,max=60"`
	Limit           int             `json:"limit" validate:"max=1000"`
	Gender          string          `json:"gender" validate:"max=40"`
	Cities          []string        `json:"cities" validate:"max=50,dive,max=120"`
	JobLat          *float64        `json:"jobLat" validate:"omitempty,min=-90,max=90"`
	JobLon          *float64        `json:"jobLon" validate:"omitempty,min=-180,max=180"`
	MaxDistanceKm   *float64        `json:"maxDistanceKm" validate:"omitempty,min=0,max=20000"`
	Filters         *rankingFilters `json:"filters"`
}

// RankingHandler scores the candidate pool against a job query and returns
// the sorted page.
func (s *Server) RankingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rankingRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		q := domain.JobQuery{
			JobDescription:  req.JobDescription,
			RequiredSkills:  req.RequiredSkills,
			PreferredSkills: req.PreferredSkills,
			MinExperience:   req.MinExperience,
			Limit:           req.Limit,
			Gender:          req.Gender,
			Cities:          req.Cities,
			JobLat:          req.JobLat,
			JobLon:          req.JobLon,
			MaxDistanceKm:   req.MaxDistanceKm,
		}
		if f := req.Filters; f != nil {
			if f.Gender != "" {
				q.Gender = f.Gender
			}
			if len(f.Cities) > 0 {
				q.Cities = f.Cities
			}
			if f.Lat != nil {
				q.JobLat = f.Lat
			}
			if f.Lon != nil {
				q.JobLon = f.Lon
			}
			if f.MaxDistanceKm != nil {
				q.MaxDistanceKm = f.MaxDistanceKm
			}
		}
		ranked, err := s.Ranking.Rank(r.Context(), q)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		scores := make([]float64, len(ranked))
		for i, c := range ranked {
			scores[i] = c.Score
		}
		observability.ObserveRanking(len(ranked), scores)
		writeJSON(w, http.StatusOK, map[string]any{"count": len(ranked), "candidates": ranked})
	}
}

// HealthzHandler reports process liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler reports dependency readiness: DB is required, Tika and Redis
// degrade the report but keep the service ready.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		deps := map[string]string{}
		status := http.StatusOK
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				deps["db"] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				deps["db"] = "ok"
			}
		}
		if s.TikaCheck != nil {
			if err := s.TikaCheck(ctx); err != nil {
				deps["tika"] = err.Error()
			} else {
				deps["tika"] = "ok"
			}
		}
		if s.RedisCheck != nil {
			if err := s.RedisCheck(ctx); err != nil {
				deps["redis"] = err.Error()
			} else {
				deps["redis"] = "ok"
			}
		}
		writeJSON(w, status, map[string]any{"status": http.StatusText(status), "deps": deps})
	}
}
