package auth

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/vovakirdan/formsync/internal/store"
)

// ErrInvalidToken is returned when a bearer token is missing or fails validation.
var ErrInvalidToken = errors.New("invalid token")

// palette holds the presence colors handed out to principals.
var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#008080",
}

// Identity is an authenticated principal.
type Identity struct {
	User  *store.User
	Color string
}

// Service validates bearer tokens and maps them to stored users.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Authenticate validates token and returns the principal it names,
// creating the user record on first sight.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}

	user, err := s.store.UpsertUser(ctx, claims.Subject, name, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return &Identity{User: user, Color: ColorFor(claims.Subject)}, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// ColorFor picks a stable presence color for subject.
func ColorFor(subject string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subject))
	return palette[h.Sum32()%uint32(len(palette))]
}
