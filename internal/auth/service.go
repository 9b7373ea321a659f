package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// ErrConfirmationDelivery marks an account that was stored but whose
// confirmation e-mail could not be queued.
var ErrConfirmationDelivery = errors.New("confirmation email not queued")

// ConfirmationMailer queues confirmation e-mails for delivery.
type ConfirmationMailer interface {
	EnqueueConfirmation(ctx context.Context, msg ConfirmationEmail) error
}

// Service wraps authentication business rules.
type Service struct {
	repo       Repository
	tokens     *ConfirmTokens
	mailer     ConfirmationMailer
	confirmURL string
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EnableConfirmation configures how sign-ups prove e-mail ownership. baseURL
// is the public origin the confirmation link points at.
func (s *Service) EnableConfirmation(tokens *ConfirmTokens, mailer ConfirmationMailer, baseURL string) {
	s.tokens = tokens
	s.mailer = mailer
	s.confirmURL = strings.TrimRight(baseURL, "/") + "/confirm-email"
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.Confirmed() {
		// The password matched, so sending a fresh link leaks nothing.
		if err := s.sendConfirmation(ctx, user); err != nil {
			return nil, errors.Join(shared.ErrEmailUnconfirmed, err)
		}
		return nil, shared.ErrEmailUnconfirmed
	}
	return user, nil
}

// SignUp registers an unconfirmed client account and queues the confirmation
// e-mail. Client records are only linked once the link is followed. When the
// account is stored but the e-mail cannot be queued, the user is returned
// together with ErrConfirmationDelivery.
func (s *Service) SignUp(ctx context.Context, fullName, email, password string) (*User, error) {
	if s.tokens == nil || s.mailer == nil {
		return nil, errors.New("auth: email confirmation is not configured")
	}
	user, err := s.register(ctx, fullName, email, password, RoleClient, false)
	if err != nil {
		return nil, err
	}
	if err := s.sendConfirmation(ctx, user); err != nil {
		return user, err
	}
	return user, nil
}

// CreateAdmin registers an administrator account. Used by the admin CLI, so
// the address counts as confirmed.
func (s *Service) CreateAdmin(ctx context.Context, fullName, email, password string) (*User, error) {
	return s.register(ctx, fullName, email, password, RoleAdmin, true)
}

// ConfirmEmail redeems a confirmation token.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (*User, error) {
	if s.tokens == nil {
		return nil, ErrInvalidConfirmation
	}
	userID, email, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.ConfirmEmail(ctx, userID, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrInvalidConfirmation
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) sendConfirmation(ctx context.Context, user *User) error {
	if s.tokens == nil || s.mailer == nil {
		return fmt.Errorf("%w: confirmation is not configured", ErrConfirmationDelivery)
	}
	token, err := s.tokens.Issue(*user)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfirmationDelivery, err)
	}
	msg := ConfirmationEmail{
		To:   user.Email,
		Link: s.confirmURL + "?" + url.Values{"token": {token}}.Encode(),
	}
	if profile, err := s.repo.GetProfile(ctx, user.ID); err == nil {
		msg.FullName = profile.FullName
	}
	if err := s.mailer.EnqueueConfirmation(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrConfirmationDelivery, err)
	}
	return nil
}

func (s *Service) register(ctx context.Context, fullName, email, password, role string, confirmed bool) (*User, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeEmail(email)
	if fullName == "" || email == "" || password == "" {
		return nil, shared.Invalid("Please fill in all fields.")
	}
	if len(password) < 8 {
		return nil, shared.Invalid("Password must be at least 8 characters.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, NewUser{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
		Confirmed:    confirmed,
	})
}

// Profile returns the role and name for a user.
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// RoleOf satisfies rbac.RoleResolver.
func (s *Service) RoleOf(ctx context.Context, userID string) (string, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	return profile.Role, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
