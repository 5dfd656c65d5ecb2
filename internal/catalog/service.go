package catalog

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProductBySKU(ctx context.Context, sku string) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	InsertProduct(ctx context.Context, p Product) (int64, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeactivateProduct(ctx context.Context, id int64) error
	ListLowStock(ctx context.Context, warehouseID int64) ([]LowStockItem, error)

	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	InsertCategory(ctx context.Context, c Category) (int64, error)
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id int64) error

	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	InsertSupplier(ctx context.Context, s Supplier) (int64, error)
	UpdateSupplier(ctx context.Context, s Supplier) error
	DeleteSupplier(ctx context.Context, id int64) error
}

// Service manages the product catalog.
type Service struct {
	repo     RepositoryPort
	recorder audit.Recorder
	validate *validator.Validate
}

// NewService builds the catalog service.
func NewService(repo RepositoryPort, recorder audit.Recorder) *Service {
	return &Service{repo: repo, recorder: recorder, validate: validator.New()}
}

// GetProduct loads one product with its total stock.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts lists products matching the filter.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

// ListLowStock lists entries at or below their alert level, optionally
// scoped to one warehouse.
func (s *Service) ListLowStock(ctx context.Context, warehouseID int64) ([]LowStockItem, error) {
	return s.repo.ListLowStock(ctx, warehouseID)
}

// CreateProduct registers a new product. SKUs are unique.
func (s *Service) CreateProduct(ctx context.Context, actor shared.Actor, req ProductRequest) (Product, error) {
	if err := s.validateProduct(req); err != nil {
		return Product{}, err
	}
	if _, err := s.repo.GetProductBySKU(ctx, req.SKU); err == nil {
		return Product{}, fmt.Errorf("%w: sku %s", shared.ErrDuplicate, req.SKU)
	}

	product := Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		SupplierID:    req.SupplierID,
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
		Active:        true,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	id, err := s.repo.InsertProduct(ctx, product)
	if err != nil {
		return Product{}, err
	}
	product.ID = id

	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionCreation,
		Entity:   "product",
		EntityID: id,
		Details:  map[string]any{"sku": product.SKU, "name": product.Name},
	}); err != nil {
		return Product{}, err
	}
	return product, nil
}

// UpdateProduct modifies an existing product.
func (s *Service) UpdateProduct(ctx context.Context, actor shared.Actor, id int64, req ProductRequest) (Product, error) {
	if err := s.validateProduct(req); err != nil {
		return Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if req.SKU != product.SKU {
		if _, err := s.repo.GetProductBySKU(ctx, req.SKU); err == nil {
			return Product{}, fmt.Errorf("%w: sku %s", shared.ErrDuplicate, req.SKU)
		}
	}

	product.SKU = req.SKU
	product.Name = req.Name
	product.Description = req.Description
	product.CategoryID = req.CategoryID
	product.SupplierID = req.SupplierID
	product.PurchasePrice = req.PurchasePrice
	product.SalePrice = req.SalePrice
	if req.Active != nil {
		product.Active = *req.Active
	}
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return Product{}, err
	}

	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionModification,
		Entity:   "product",
		EntityID: id,
		Details:  map[string]any{"sku": product.SKU},
	}); err != nil {
		return Product{}, err
	}
	return product, nil
}

// DeactivateProduct soft-deletes a product. Stock entries and movement
// history stay intact.
func (s *Service) DeactivateProduct(ctx context.Context, actor shared.Actor, id int64) error {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	return s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionDeletion,
		Entity:   "product",
		EntityID: id,
		Details:  map[string]any{"sku": product.SKU},
	})
}

// GetCategory loads one category.
func (s *Service) GetCategory(ctx context.Context, id int64) (Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// ListCategories lists all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateCategory registers a new category.
func (s *Service) CreateCategory(ctx context.Context, actor shared.Actor, req CategoryRequest) (Category, error) {
	if err := s.validate.Struct(req); err != nil {
		return Category{}, fmt.Errorf("catalog: %w", err)
	}
	category := Category{Name: req.Name, Description: req.Description}
	id, err := s.repo.InsertCategory(ctx, category)
	if err != nil {
		return Category{}, err
	}
	category.ID = id
	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionCreation,
		Entity:   "category",
		EntityID: id,
		Details:  map[string]any{"name": category.Name},
	}); err != nil {
		return Category{}, err
	}
	return category, nil
}

// UpdateCategory modifies a category.
func (s *Service) UpdateCategory(ctx context.Context, actor shared.Actor, id int64, req CategoryRequest) (Category, error) {
	if err := s.validate.Struct(req); err != nil {
		return Category{}, fmt.Errorf("catalog: %w", err)
	}
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	category.Name = req.Name
	category.Description = req.Description
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return Category{}, err
	}
	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionModification,
		Entity:   "category",
		EntityID: id,
		Details:  map[string]any{"name": category.Name},
	}); err != nil {
		return Category{}, err
	}
	return category, nil
}

// DeleteCategory removes a category. Products referencing it keep a null
// category.
func (s *Service) DeleteCategory(ctx context.Context, actor shared.Actor, id int64) error {
	if _, err := s.repo.GetCategory(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	return s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionDeletion,
		Entity:   "category",
		EntityID: id,
	})
}

// GetSupplier loads one supplier.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// ListSuppliers lists all suppliers.
func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

// CreateSupplier registers a new supplier.
func (s *Service) CreateSupplier(ctx context.Context, actor shared.Actor, req SupplierRequest) (Supplier, error) {
	if err := s.validate.Struct(req); err != nil {
		return Supplier{}, fmt.Errorf("catalog: %w", err)
	}
	supplier := Supplier{
		Name:    req.Name,
		Contact: req.Contact,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}
	id, err := s.repo.InsertSupplier(ctx, supplier)
	if err != nil {
		return Supplier{}, err
	}
	supplier.ID = id
	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionCreation,
		Entity:   "supplier",
		EntityID: id,
		Details:  map[string]any{"name": supplier.Name},
	}); err != nil {
		return Supplier{}, err
	}
	return supplier, nil
}

// UpdateSupplier modifies a supplier.
func (s *Service) UpdateSupplier(ctx context.Context, actor shared.Actor, id int64, req SupplierRequest) (Supplier, error) {
	if err := s.validate.Struct(req); err != nil {
		return Supplier{}, fmt.Errorf("catalog: %w", err)
	}
	supplier, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	supplier.Name = req.Name
	supplier.Contact = req.Contact
	supplier.Email = req.Email
	supplier.Phone = req.Phone
	supplier.Address = req.Address
	if err := s.repo.UpdateSupplier(ctx, supplier); err != nil {
		return Supplier{}, err
	}
	if err := s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionModification,
		Entity:   "supplier",
		EntityID: id,
		Details:  map[string]any{"name": supplier.Name},
	}); err != nil {
		return Supplier{}, err
	}
	return supplier, nil
}

// DeleteSupplier removes a supplier. Products referencing it keep a null
// supplier.
func (s *Service) DeleteSupplier(ctx context.Context, actor shared.Actor, id int64) error {
	if _, err := s.repo.GetSupplier(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteSupplier(ctx, id); err != nil {
		return err
	}
	return s.recorder.Record(ctx, audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionDeletion,
		Entity:   "supplier",
		EntityID: id,
	})
}

func (s *Service) validateProduct(req ProductRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if req.PurchasePrice.IsNegative() || req.SalePrice.IsNegative() {
		return fmt.Errorf("%w: prices cannot be negative", shared.ErrInvalidAmount)
	}
	return nil
}
