package auth

import (
	"context"
	"errors"
	"time"

	"ticketapp/internal/models"
	"ticketapp/internal/session"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type credential struct {
	user models.User
	hash []byte
}

// Service authenticates against a fixed user table and writes the resulting
// session. There is no real registration flow; signup synthesizes a session
// from the supplied details and always succeeds.
type Service struct {
	users    []credential
	sessions *session.Store
	now      func() time.Time
}

type seedUser struct {
	id       int64
	name     string
	email    string
	password string
}

var seedUsers = []seedUser{
	{id: 1, name: "Admin User", email: "admin@example.com", password: "password123"},
	{id: 2, name: "Test User", email: "test@example.com", password: "test123"},
}

func NewService(sessions *session.Store) (*Service, error) {
	users := make([]credential, 0, len(seedUsers))
	for _, seed := range seedUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		users = append(users, credential{
			user: models.User{ID: seed.id, Name: seed.name, Email: seed.email},
			hash: hash,
		})
	}
	return &Service{users: users, sessions: sessions, now: time.Now}, nil
}

// Authenticate checks the credential table for an exact email match and a
// matching password. The error is deliberately the same for unknown emails
// and wrong passwords.
func (s *Service) Authenticate(ctx context.Context, email, password string) (models.Session, error) {
	for _, cred := range s.users {
		if cred.user.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword(cred.hash, []byte(password)) != nil {
			return models.Session{}, ErrInvalidCredentials
		}
		sess := models.Session{ID: cred.user.ID, Name: cred.user.Name, Email: cred.user.Email}
		if err := s.sessions.Set(ctx, sess); err != nil {
			return models.Session{}, err
		}
		return sess, nil
	}
	return models.Session{}, ErrInvalidCredentials
}

// Signup does not persist a user record; it writes a session directly and
// reports success for any well-formed input.
func (s *Service) Signup(ctx context.Context, name, email string) (models.Session, error) {
	sess := models.Session{
		ID:    s.now().UnixMilli(),
		Name:  name,
		Email: email,
	}
	if err := s.sessions.Set(ctx, sess); err != nil {
		return models.Session{}, err
	}
	return sess, nil
}
