package usecase

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hrselector/backend/internal/domain"
)

// CVService handles CV ingestion, versioning and retrieval.
type CVService struct {
	CVs       domain.CVRepository
	Extractor domain.TextExtractor
	Analyzer  domain.Analyzer
	Files     domain.FileStore
}

// NewCVService constructs a CVService with all collaborators wired.
func NewCVService(cvs domain.CVRepository, ext domain.TextExtractor, an domain.Analyzer, files domain.FileStore) CVService {
	return CVService{CVs: cvs, Extractor: ext, Analyzer: an, Files: files}
}

// UploadInput carries one CV upload. Category is already coerced to the closed
// enumeration by the caller.
type UploadInput struct {
	UserID     int64
	Filename   string
	Data       []byte
	Category   domain.Category
	SetPrimary bool
	Filters    []string
}

// Upload stores the original file, extracts and analyzes its text, and
// persists a new version within (user, category). Analysis is a soft-fail
// path: an extraction or analyzer error stores the record with empty signal
// fields instead of rejecting the upload.
func (s CVService) Upload(ctx domain.Context, in UploadInput) (domain.CV, error) {
	if in.UserID <= 0 {
		return domain.CV{}, fmt.Errorf("%w: user id required", domain.ErrInvalidArgument)
	}
	if len(in.Data) == 0 {
		return domain.CV{}, fmt.Errorf("%w: empty file", domain.ErrInvalidArgument)
	}

	stored, err := s.Files.Save(ctx, in.Filename, in.Data)
	if err != nil {
		return domain.CV{}, fmt.Errorf("op=cv.store_file: %w", err)
	}

	text, analysis := s.analyze(ctx, in)

	cv := domain.CV{
		UserID:              in.UserID,
		Filename:            in.Filename,
		StoredFilename:      stored,
		ContentText:         text,
		ParsedData:          analysis.ParsedData,
		Skills:              analysis.Skills,
		ExperienceYears:     analysis.ExperienceYears,
		Education:           analysis.Education,
		ClassificationScore: analysis.ClassificationScore,
		Category:            in.Category,
		CreatedAt:           time.Now().UTC(),
	}
	created, err := s.CVs.CreateVersioned(ctx, cv, in.SetPrimary)
	if err != nil {
		return domain.CV{}, err
	}
	return created, nil
}

// analyze runs extraction plus heuristics, degrading to empty defaults on any
// failure so the upload itself still succeeds.
func (s CVService) analyze(ctx domain.Context, in UploadInput) (string, domain.Analysis) {
	fallback := domain.Analysis{
		Skills:     []string{},
		Education:  []string{},
		ParsedData: map[string]any{"error": "analysis_failed"},
	}

	text, err := s.extractText(ctx, in.Filename, in.Data)
	if err != nil {
		slog.Warn("cv text extraction failed, storing with empty analysis",
			slog.String("filename", in.Filename), slog.Any("error", err))
		return "", fallback
	}
	analysis, err := s.Analyzer.Analyze(ctx, text, in.Filters)
	if err != nil {
		slog.Warn("cv analysis failed, storing with empty analysis",
			slog.String("filename", in.Filename), slog.Any("error", err))
		return text, fallback
	}
	return text, analysis
}

// extractText streams the upload through the extractor via a temp file.
func (s CVService) extractText(ctx domain.Context, filename string, data []byte) (string, error) {
	if s.Extractor == nil {
		return "", fmt.Errorf("%w: no extractor configured", domain.ErrInternal)
	}
	tmp, err := os.CreateTemp("", "cv-upload-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()); _ = tmp.Close() }()
	if _, err := tmp.Write(data); err != nil {
		return "", err
	}
	return s.Extractor.ExtractPath(ctx, filename, tmp.Name())
}

// SetPrimary promotes the CV to primary within its (user, category) scope,
// demoting every sibling. The repository performs the transition atomically.
func (s CVService) SetPrimary(ctx domain.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid cv id", domain.ErrInvalidArgument)
	}
	return s.CVs.SetPrimary(ctx, id)
}

// Get loads a stored CV by id.
func (s CVService) Get(ctx domain.Context, id int64) (domain.CV, error) {
	if id <= 0 {
		return domain.CV{}, fmt.Errorf("%w: invalid cv id", domain.ErrInvalidArgument)
	}
	return s.CVs.Get(ctx, id)
}

// Count returns the total number of stored CVs.
func (s CVService) Count(ctx domain.Context) (int64, error) {
	return s.CVs.Count(ctx)
}

// DownloadPath resolves the original filename and on-disk path for a CV.
func (s CVService) DownloadPath(ctx domain.Context, id int64) (string, string, error) {
	cv, err := s.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	if cv.StoredFilename == "" {
		return "", "", fmt.Errorf("%w: file not available", domain.ErrNotFound)
	}
	path, err := s.Files.Path(cv.StoredFilename)
	if err != nil {
		return "", "", err
	}
	return cv.Filename, path, nil
}
