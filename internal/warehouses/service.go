package warehouses

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// RepositoryPort abstracts warehouse persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Warehouse, error)
	GetByCode(ctx context.Context, code string) (Warehouse, error)
	List(ctx context.Context) ([]Warehouse, error)
	Insert(ctx context.Context, w Warehouse) (int64, error)
	Update(ctx context.Context, w Warehouse) error
	Deactivate(ctx context.Context, id int64) error
	Stats(ctx context.Context, id int64) (Stats, error)
}

// Service manages warehouses.
type Service struct {
	repo     RepositoryPort
	recorder audit.Recorder
	validate *validator.Validate
}

// NewService builds the warehouses service.
func NewService(repo RepositoryPort, recorder audit.Recorder) *Service {
	return &Service{repo: repo, recorder: recorder, validate: validator.New()}
}

// Get loads one warehouse.
func (s *Service) Get(ctx context.Context, id int64) (Warehouse, error) {
	return s.repo.Get(ctx, id)
}

// List lists all warehouses.
func (s *Service) List(ctx context.Context) ([]Warehouse, error) {
	return s.repo.List(ctx)
}

// Stats aggregates the stock position of one warehouse. The existence check
// and the aggregation run concurrently.
func (s *Service) Stats(ctx context.Context, id int64) (Stats, error) {
	g, ctx := errgroup.WithContext(ctx)
	var stats Stats
	g.Go(func() error {
		_, err := s.repo.Get(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.repo.Stats(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Create registers a new warehouse. Codes are unique.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req Request) (Warehouse, error) {
	if err := s.validate.Struct(req); err != nil {
		return Warehouse{}, fmt.Errorf("warehouses: %w", err)
	}
	if _, err := s.repo.GetByCode(ctx, req.Code); err == nil {
		return Warehouse{}, fmt.Errorf("%w: code %s", shared.ErrDuplicate, req.Code)
	}

	warehouse := Warehouse{Code: req.Code, Name: req.Name, Address: req.Address, Active: true}
	if req.Active != nil {
		warehouse.Active = *req.Active
	}
	id, err := s.repo.Insert(ctx, warehouse)
	if err != nil {
		return Warehouse{}, err
	}
	warehouse.ID = id

	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionCreation,
		Entity:   "warehouse",
		EntityID: id,
		Details:  map[string]any{"code": warehouse.Code, "name": warehouse.Name},
	}); err != nil {
		return Warehouse{}, err
	}
	return warehouse, nil
}

// Update modifies a warehouse.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req Request) (Warehouse, error) {
	if err := s.validate.Struct(req); err != nil {
		return Warehouse{}, fmt.Errorf("warehouses: %w", err)
	}
	warehouse, err := s.repo.Get(ctx, id)
	if err != nil {
		return Warehouse{}, err
	}
	if req.Code != warehouse.Code {
		if _, err := s.repo.GetByCode(ctx, req.Code); err == nil {
			return Warehouse{}, fmt.Errorf("%w: code %s", shared.ErrDuplicate, req.Code)
		}
	}

	warehouse.Code = req.Code
	warehouse.Name = req.Name
	warehouse.Address = req.Address
	if req.Active != nil {
		warehouse.Active = *req.Active
	}
	if err := s.repo.Update(ctx, warehouse); err != nil {
		return Warehouse{}, err
	}

	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionModification,
		Entity:   "warehouse",
		EntityID: id,
		Details:  map[string]any{"code": warehouse.Code},
	}); err != nil {
		return Warehouse{}, err
	}
	return warehouse, nil
}

// Deactivate soft-deletes a warehouse. Its entries and history remain.
func (s *Service) Deactivate(ctx context.Context, actor shared.Actor, id int64) error {
	warehouse, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	return s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionDeletion,
		Entity:   "warehouse",
		EntityID: id,
		Details:  map[string]any{"code": warehouse.Code},
	})
}
