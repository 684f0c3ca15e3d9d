package usecase

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hrselector/backend/internal/domain"
	"github.com/hrselector/backend/pkg/textx"
)

// bcryptCost matches the original platform's hashing cost.
const bcryptCost = 10

// AuthService registers accounts and verifies credentials. Token issuance
// lives in the HTTP adapter.
type AuthService struct {
	Users domain.UserRepository
}

// NewAuthService constructs an AuthService with the given repo.
func NewAuthService(users domain.UserRepository) AuthService {
	return AuthService{Users: users}
}

// RegisterInput is a registration request. Gender/City/Lat/Lon are optional
// profile attributes used later by ranking filters.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Role     string
	Gender   string
	City     string
	Lat      *float64
	Lon      *float64
}

// Register creates a new account and returns it. Duplicate emails yield
// ErrConflict via the repository's unique constraint.
func (s AuthService) Register(ctx domain.Context, in RegisterInput) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" || strings.TrimSpace(in.FullName) == "" || in.Role == "" {
		return domain.User{}, fmt.Errorf("%w: missing required fields", domain.ErrInvalidArgument)
	}
	if !domain.ValidRole(in.Role) {
		return domain.User{}, fmt.Errorf("%w: invalid role %q", domain.ErrInvalidArgument, in.Role)
	}
	if (in.Lat == nil) != (in.Lon == nil) {
		return domain.User{}, fmt.Errorf("%w: lat and lon must be provided together", domain.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("op=auth.hash: %w", err)
	}

	u := domain.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(in.FullName),
		Role:         in.Role,
		Gender:       textx.NormalizeOne(in.Gender),
		City:         textx.NormalizeOne(in.City),
		Lat:          in.Lat,
		Lon:          in.Lon,
		CreatedAt:    time.Now().UTC(),
	}
	id, err := s.Users.Create(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	u.ID = id
	return u, nil
}

// Login verifies credentials and returns the account. Unknown emails and bad
// passwords are indistinguishable to the caller.
func (s AuthService) Login(ctx domain.Context, email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.User{}, fmt.Errorf("%w: email and password required", domain.ErrInvalidArgument)
	}
	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	return u, nil
}
