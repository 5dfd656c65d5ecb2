package customers

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/authz"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// RepositoryPort abstracts customer persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, filter ListFilter) ([]Customer, error)
	Insert(ctx context.Context, c Customer) (int64, error)
	Update(ctx context.Context, c Customer) error
	Delete(ctx context.Context, id int64) error
}

// AuthorizerPort decouples the service from the concrete capability checker.
type AuthorizerPort interface {
	Can(actor shared.Actor, action authz.Action, res authz.Resource) error
}

// Service manages customers with ownership scoping for agents.
type Service struct {
	repo     RepositoryPort
	authz    AuthorizerPort
	recorder audit.Recorder
	validate *validator.Validate
}

// NewService builds the customers service.
func NewService(repo RepositoryPort, az AuthorizerPort, recorder audit.Recorder) *Service {
	return &Service{repo: repo, authz: az, recorder: recorder, validate: validator.New()}
}

// Get loads one customer, enforcing ownership for agents.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Customer, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if err := s.authz.Can(actor, authz.ActionCustomersView, authz.Owned("customer", customer.CreatedBy)); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// List returns customers matching the filter. Agents only see their own.
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Customer, error) {
	if !actor.IsAdmin() {
		filter.CreatedBy = actor.ID
	}
	return s.repo.List(ctx, filter)
}

// Create registers a new customer owned by the actor.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req Request) (Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return Customer{}, fmt.Errorf("customers: %w", err)
	}
	customer := Customer{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Notes:     req.Notes,
		CreatedBy: actor.ID,
	}
	id, err := s.repo.Insert(ctx, customer)
	if err != nil {
		return Customer{}, err
	}
	customer.ID = id

	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionCreation,
		Entity:   "customer",
		EntityID: id,
		Details:  map[string]any{"name": customer.Name},
	}); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// Update modifies a customer, enforcing ownership for agents.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req Request) (Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return Customer{}, fmt.Errorf("customers: %w", err)
	}
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if err := s.authz.Can(actor, authz.ActionCustomersManage, authz.Owned("customer", customer.CreatedBy)); err != nil {
		return Customer{}, err
	}

	customer.Name = req.Name
	customer.Email = req.Email
	customer.Phone = req.Phone
	customer.Address = req.Address
	customer.Notes = req.Notes
	if err := s.repo.Update(ctx, customer); err != nil {
		return Customer{}, err
	}

	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionModification,
		Entity:   "customer",
		EntityID: id,
		Details:  map[string]any{"name": customer.Name},
	}); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// Delete removes a customer. Sales referencing it keep a null customer.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authz.Can(actor, authz.ActionCustomersManage, authz.Owned("customer", customer.CreatedBy)); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionDeletion,
		Entity:   "customer",
		EntityID: id,
		Details:  map[string]any{"name": customer.Name},
	})
}
