package httpserver_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrselector/backend/internal/adapter/httpserver"
	"github.com/hrselector/backend/internal/config"
	"github.com/hrselector/backend/internal/domain"
	"github.com/hrselector/backend/internal/usecase"
)

type stubCandidateRepo struct {
	pool []domain.Candidate
}

func (r *stubCandidateRepo) List(_ domain.Context) ([]domain.Candidate, error) {
	return r.pool, nil
}

type memUserRepo struct {
	users map[int64]domain.User
	next  int64
}

func (r *memUserRepo) Create(_ domain.Context, u domain.User) (int64, error) {
	if r.users == nil {
		r.users = map[int64]domain.User{}
	}
	for _, ex := range r.users {
		if ex.Email == u.Email {
			return 0, domain.ErrConflict
		}
	}
	r.next++
	u.ID = r.next
	r.users[u.ID] = u
	return u.ID, nil
}

func (r *memUserRepo) GetByEmail(_ domain.Context, email string) (domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *memUserRepo) Get(_ domain.Context, id int64) (domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

type memCVRepo struct {
	cvs []domain.CV
}

func (r *memCVRepo) CreateVersioned(_ domain.Context, cv domain.CV, setPrimary bool) (domain.CV, error) {
	version := 1
	for _, ex := range r.cvs {
		if ex.UserID == cv.UserID && ex.Category == cv.Category && ex.Version >= version {
			version = ex.Version + 1
		}
	}
	cv.ID = int64(len(r.cvs) + 1)
	cv.Version = version
	cv.IsPrimary = setPrimary || version == 1
	r.cvs = append(r.cvs, cv)
	return cv, nil
}

func (r *memCVRepo) Get(_ domain.Context, id int64) (domain.CV, error) {
	for _, cv := range r.cvs {
		if cv.ID == id {
			return cv, nil
		}
	}
	return domain.CV{}, domain.ErrNotFound
}

func (r *memCVRepo) SetPrimary(_ domain.Context, id int64) error { return nil }

func (r *memCVRepo) ListByUser(_ domain.Context, userID int64, _ int) ([]domain.CV, error) {
	out := []domain.CV{}
	for _, cv := range r.cvs {
		if cv.UserID == userID {
			out = append(out, cv)
		}
	}
	return out, nil
}

func (r *memCVRepo) Count(_ domain.Context) (int64, error) { return int64(len(r.cvs)), nil }

func testServer(candidates []domain.Candidate) (*httpserver.Server, httpserver.TokenManager) {
	cfg := config.Config{AppEnv: "test", MaxUploadMB: 5}
	tokens := httpserver.NewTokenManager("test-secret", time.Hour)
	users := &memUserRepo{}
	ranking := usecase.NewRankingService(&stubCandidateRepo{pool: candidates})
	return httpserver.NewServer(cfg,
		usecase.NewAuthService(users),
		usecase.CVService{CVs: &memCVRepo{}},
		usecase.NewProfileService(users, &memCVRepo{}),
		ranking, tokens, nil, nil, nil), tokens
}

func TestRankingHandler(t *testing.T) {
	t.Parallel()
	srv, _ := testServer([]domain.Candidate{
		{UserID: 1, FullName: "Ana", Skills: []string{"go", "postgres"}, ExperienceYears: 5},
		{UserID: 2, FullName: "Luis", Skills: []string{"react"}, ExperienceYears: 1},
	})

	body := `{"requiredSkills":["go"],"minExperience":2,"limit":10}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ranking", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.RankingHandler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count      int                      `json:"count"`
		Candidates []domain.ScoredCandidate `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Ana", resp.Candidates[0].FullName)
	assert.Greater(t, resp.Candidates[0].Score, 0.0)
}

func TestRankingHandler_InvalidJSON(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/ranking", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.RankingHandler()(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_ARGUMENT")
}

func TestRankingHandler_ValidationFailure(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/ranking", strings.NewReader(`{"minExperience":-3}`))
	rec := httptest.NewRecorder()
	srv.RankingHandler()(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRankingHandler_NegativeLimitReturnsOneRow(t *testing.T) {
	t.Parallel()
	srv, _ := testServer([]domain.Candidate{
		{UserID: 1, FullName: "Ana", Skills: []string{"go"}, ExperienceYears: 5},
		{UserID: 2, FullName: "Luis", Skills: []string{"go"}, ExperienceYears: 3},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/ranking", strings.NewReader(`{"limit":-5}`))
	rec := httptest.NewRecorder()
	srv.RankingHandler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count      int                      `json:"count"`
		Candidates []domain.ScoredCandidate `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Candidates, 1)
}

func fptr(v float64) *float64 { return &v }

func TestRankingHandler_FlatLocationFilters(t *testing.T) {
	t.Parallel()
	srv, _ := testServer([]domain.Candidate{
		{UserID: 1, FullName: "Ana", Skills: []string{"go"}, ExperienceYears: 5,
			Lat: fptr(40.4168), Lon: fptr(-3.7038)},
		{UserID: 2, FullName: "Luis", Skills: []string{"go"}, ExperienceYears: 5,
			Lat: fptr(-34.6037), Lon: fptr(-58.3816)},
	})

	body := `{"requiredSkills":["go"],"jobLat":40.4168,"jobLon":-3.7038,"maxDistanceKm":50}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ranking", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.RankingHandler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count      int                      `json:"count"`
		Candidates []domain.ScoredCandidate `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Ana", resp.Candidates[0].FullName)
	require.NotNil(t, resp.Candidates[0].Reasons.DistanceKm)
	assert.InDelta(t, 0.0, *resp.Candidates[0].Reasons.DistanceKm, 0.1)
}

func TestRankingHandler_NestedFiltersOverrideFlat(t *testing.T) {
	t.Parallel()
	srv, _ := testServer([]domain.Candidate{
		{UserID: 1, FullName: "Ana", Skills: []string{"go"}, ExperienceYears: 5, Gender: "f"},
		{UserID: 2, FullName: "Luis", Skills: []string{"go"}, ExperienceYears: 5, Gender: "m"},
	})

	body := `{"requiredSkills":["go"],"gender":"f","filters":{"gender":"m"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ranking", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.RankingHandler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count      int                      `json:"count"`
		Candidates []domain.ScoredCandidate `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Luis", resp.Candidates[0].FullName)
}

func TestRegisterThenLogin(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(nil)

	reg := `{"email":"ana@example.com","password":"s3cret-pass","full_name":"Ana","role":"candidato"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(reg))
	rec := httptest.NewRecorder()
	srv.RegisterHandler()(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "ana@example.com", created.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	login := `{"email":"ana@example.com","password":"s3cret-pass"}`
	req = httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(login))
	rec = httptest.NewRecorder()
	srv.LoginHandler()(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"ana@example.com","password":"wrong-pass"}`))
	rec = httptest.NewRecorder()
	srv.LoginHandler()(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterHandler_WeakPassword(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register",
		strings.NewReader(`{"email":"a@b.com","password":"short","full_name":"A","role":"candidato"}`))
	rec := httptest.NewRecorder()
	srv.RegisterHandler()(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadCVHandler_RequiresMultipart(t *testing.T) {
	t.Parallel()
	srv, tokens := testServer(nil)
	token, err := tokens.Issue(domain.User{ID: 1, Role: domain.RoleCandidate})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/cvs", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	tokens.RequireAuth(srv.UploadCVHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadCVHandler_RejectsNonPDF(t *testing.T) {
	t.Parallel()
	srv, tokens := testServer(nil)
	token, err := tokens.Issue(domain.User{ID: 1, Role: domain.RoleCandidate})
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("cv", "cv.exe")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("MZ binary"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/cvs", &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	tokens.RequireAuth(srv.UploadCVHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUploadCVHandler_RejectsFakePDFContent(t *testing.T) {
	t.Parallel()
	srv, tokens := testServer(nil)
	token, err := tokens.Issue(domain.User{ID: 1, Role: domain.RoleCandidate})
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("cv", "cv.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("plain text pretending to be a pdf"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/cvs", &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	tokens.RequireAuth(srv.UploadCVHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()
	tokens := httpserver.NewTokenManager("test-secret", time.Hour)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		tokens.RequireAuth(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		tokens.RequireAuth(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		other := httpserver.NewTokenManager("other-secret", time.Hour)
		tok, err := other.Issue(domain.User{ID: 1, Role: domain.RoleAdmin})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		tokens.RequireAuth(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()
		tok, err := tokens.Issue(domain.User{ID: 1, Email: "a@b.com", Role: domain.RoleAdmin})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		tokens.RequireAuth(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		short := httpserver.NewTokenManager("test-secret", time.Nanosecond)
		tok, err := short.Issue(domain.User{ID: 1, Role: domain.RoleAdmin})
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		tokens.RequireAuth(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRoles(t *testing.T) {
	t.Parallel()
	tokens := httpserver.NewTokenManager("test-secret", time.Hour)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	guarded := tokens.RequireAuth(httpserver.RequireRoles(domain.RoleAdmin, domain.RoleRecruiter)(ok))

	t.Run("candidate forbidden", func(t *testing.T) {
		t.Parallel()
		tok, err := tokens.Issue(domain.User{ID: 3, Role: domain.RoleCandidate})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "FORBIDDEN")
	})

	t.Run("recruiter allowed", func(t *testing.T) {
		t.Parallel()
		tok, err := tokens.Issue(domain.User{ID: 2, Role: domain.RoleRecruiter})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
