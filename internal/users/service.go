package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// RepositoryPort abstracts user persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	Insert(ctx context.Context, u User) (int64, error)
	Update(ctx context.Context, u User) error
	Deactivate(ctx context.Context, id int64) error
}

// Service manages accounts. All mutations are admin-only, enforced at the
// router.
type Service struct {
	repo     RepositoryPort
	recorder audit.Recorder
	validate *validator.Validate
}

// NewService builds the users service.
func NewService(repo RepositoryPort, recorder audit.Recorder) *Service {
	return &Service{repo: repo, recorder: recorder, validate: validator.New()}
}

// Get loads one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// GetByEmail loads one account by email. Used by the login flow.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// List lists all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Create registers a new account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRequest) (User, error) {
	if err := s.validate.Struct(req); err != nil {
		return User{}, fmt.Errorf("users: %w", err)
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return User{}, fmt.Errorf("%w: email %s", shared.ErrDuplicate, req.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	user := User{
		Email:        req.Email,
		Name:         req.Name,
		Role:         req.Role,
		Active:       true,
		PasswordHash: string(hash),
	}
	id, err := s.repo.Insert(ctx, user)
	if err != nil {
		return User{}, err
	}
	user.ID = id

	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionCreation,
		Entity:   "user",
		EntityID: id,
		Details:  map[string]any{"email": user.Email, "role": string(user.Role)},
	}); err != nil {
		return User{}, err
	}
	return user, nil
}

// Update modifies an account, rehashing the password when one is supplied.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateRequest) (User, error) {
	if err := s.validate.Struct(req); err != nil {
		return User{}, fmt.Errorf("users: %w", err)
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}

	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionModification,
		Entity:   "user",
		EntityID: id,
		Details:  map[string]any{"email": user.Email},
	}); err != nil {
		return User{}, err
	}
	return user, nil
}

// Deactivate disables an account. Existing tokens are revoked by the auth
// layer; history referencing the user remains intact.
func (s *Service) Deactivate(ctx context.Context, actor shared.Actor, id int64) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	return s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionDeletion,
		Entity:   "user",
		EntityID: id,
		Details:  map[string]any{"email": user.Email},
	})
}

// ResetPassword replaces the password hash outside the admin flow. Used by
// the password-reset confirmation, which authenticates via a one-time token
// instead of an acting admin.
func (s *Service) ResetPassword(ctx context.Context, userID int64, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", shared.ErrInvalidCredentials)
	}
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := s.repo.Update(ctx, user); err != nil {
		return err
	}
	return s.recorder.Record(ctx, audit.Event{
		ActorID:  userID,
		Action:   audit.ActionModification,
		Entity:   "user",
		EntityID: userID,
		Details:  map[string]any{"password_reset": true},
	})
}

// Authenticate verifies credentials and returns the account when they match
// an active user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, shared.ErrInvalidCredentials
		}
		return User{}, err
	}
	if !user.Active {
		return User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}
