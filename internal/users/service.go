package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var errNotConfigured = errors.New("user directory not configured")

// Service is the notification directory: the submission path registers the
// caller's token identity and the pipeline looks the owner up on completion.
type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Register normalizes and stores a caller identity. The address must parse as
// a single mailbox; it is stored in its bare form.
func (s *Service) Register(ctx context.Context, user User) error {
	if s == nil || s.Repo == nil {
		return errNotConfigured
	}
	user.ID = strings.TrimSpace(user.ID)
	user.FullName = strings.TrimSpace(user.FullName)
	if user.ID == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidUser)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(user.Email))
	if err != nil {
		return fmt.Errorf("%w: email: %v", ErrInvalidUser, err)
	}
	user.Email = addr.Address
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}
