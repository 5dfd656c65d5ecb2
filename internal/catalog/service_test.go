package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/shared"
)

var admin = shared.Actor{ID: 1, Role: shared.RoleAdmin}

type fakeRepo struct {
	products   map[int64]Product
	categories map[int64]Category
	suppliers  map[int64]Supplier
	lowStock   []LowStockItem
	nextID     int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		products:   map[int64]Product{},
		categories: map[int64]Category{},
		suppliers:  map[int64]Supplier{},
	}
}

func (r *fakeRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *fakeRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: product", shared.ErrNotFound)
	}
	return p, nil
}

func (r *fakeRepo) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	for _, p := range r.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("%w: product", shared.ErrNotFound)
}

func (r *fakeRepo) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	out := []Product{}
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRepo) InsertProduct(ctx context.Context, p Product) (int64, error) {
	p.ID = r.id()
	r.products[p.ID] = p
	return p.ID, nil
}

func (r *fakeRepo) UpdateProduct(ctx context.Context, p Product) error {
	r.products[p.ID] = p
	return nil
}

func (r *fakeRepo) DeactivateProduct(ctx context.Context, id int64) error {
	p := r.products[id]
	p.Active = false
	r.products[id] = p
	return nil
}

func (r *fakeRepo) ListLowStock(ctx context.Context, warehouseID int64) ([]LowStockItem, error) {
	return r.lowStock, nil
}

func (r *fakeRepo) GetCategory(ctx context.Context, id int64) (Category, error) {
	c, ok := r.categories[id]
	if !ok {
		return Category{}, fmt.Errorf("%w: category", shared.ErrNotFound)
	}
	return c, nil
}

func (r *fakeRepo) ListCategories(ctx context.Context) ([]Category, error) {
	out := []Category{}
	for _, c := range r.categories {
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeRepo) InsertCategory(ctx context.Context, c Category) (int64, error) {
	c.ID = r.id()
	r.categories[c.ID] = c
	return c.ID, nil
}

func (r *fakeRepo) UpdateCategory(ctx context.Context, c Category) error {
	r.categories[c.ID] = c
	return nil
}

func (r *fakeRepo) DeleteCategory(ctx context.Context, id int64) error {
	delete(r.categories, id)
	return nil
}

func (r *fakeRepo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return Supplier{}, fmt.Errorf("%w: supplier", shared.ErrNotFound)
	}
	return s, nil
}

func (r *fakeRepo) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	out := []Supplier{}
	for _, s := range r.suppliers {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeRepo) InsertSupplier(ctx context.Context, s Supplier) (int64, error) {
	s.ID = r.id()
	r.suppliers[s.ID] = s
	return s.ID, nil
}

func (r *fakeRepo) UpdateSupplier(ctx context.Context, s Supplier) error {
	r.suppliers[s.ID] = s
	return nil
}

func (r *fakeRepo) DeleteSupplier(ctx context.Context, id int64) error {
	delete(r.suppliers, id)
	return nil
}

type fakeRecorder struct {
	events []audit.Event
}

func (r *fakeRecorder) Record(ctx context.Context, ev audit.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func productRequest(sku string) ProductRequest {
	return ProductRequest{
		SKU:           sku,
		Name:          "Widget",
		PurchasePrice: decimal.NewFromInt(10),
		SalePrice:     decimal.NewFromInt(15),
	}
}

func TestCreateProduct(t *testing.T) {
	repo := newFakeRepo()
	recorder := &fakeRecorder{}
	svc := NewService(repo, recorder)

	product, err := svc.CreateProduct(context.Background(), admin, productRequest("SKU-1"))
	require.NoError(t, err)
	require.True(t, product.Active)
	require.True(t, product.Margin().Equal(decimal.NewFromInt(5)))

	require.Len(t, recorder.events, 1)
	require.Equal(t, audit.ActionCreation, recorder.events[0].Action)
	require.Equal(t, "product", recorder.events[0].Entity)
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeRecorder{})

	_, err := svc.CreateProduct(context.Background(), admin, productRequest("SKU-1"))
	require.NoError(t, err)

	_, err = svc.CreateProduct(context.Background(), admin, productRequest("SKU-1"))
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestCreateProductRejectsNegativePrices(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeRecorder{})

	req := productRequest("SKU-1")
	req.SalePrice = decimal.NewFromInt(-1)
	_, err := svc.CreateProduct(context.Background(), admin, req)
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestUpdateProductChecksNewSKU(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeRecorder{})

	first, err := svc.CreateProduct(context.Background(), admin, productRequest("SKU-1"))
	require.NoError(t, err)
	_, err = svc.CreateProduct(context.Background(), admin, productRequest("SKU-2"))
	require.NoError(t, err)

	req := productRequest("SKU-2")
	_, err = svc.UpdateProduct(context.Background(), admin, first.ID, req)
	require.ErrorIs(t, err, shared.ErrDuplicate)

	// Keeping its own SKU is fine.
	updated, err := svc.UpdateProduct(context.Background(), admin, first.ID, productRequest("SKU-1"))
	require.NoError(t, err)
	require.Equal(t, "SKU-1", updated.SKU)
}

func TestDeactivateProductIsSoftDelete(t *testing.T) {
	repo := newFakeRepo()
	recorder := &fakeRecorder{}
	svc := NewService(repo, recorder)

	product, err := svc.CreateProduct(context.Background(), admin, productRequest("SKU-1"))
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateProduct(context.Background(), admin, product.ID))

	kept, err := svc.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	require.False(t, kept.Active)
	require.Equal(t, audit.ActionDeletion, recorder.events[len(recorder.events)-1].Action)
}

func TestStockFiguresAreDerived(t *testing.T) {
	p := Product{StockTotal: 10, StockReserved: 4}
	require.EqualValues(t, 6, p.StockAvailable())
	require.False(t, p.OutOfStock())

	// Fully reserved counts as sold out for new orders.
	p.StockReserved = 10
	require.EqualValues(t, 0, p.StockAvailable())
	require.True(t, p.OutOfStock())

	// A ledger correction can briefly push reserved past on-hand mid-scan;
	// available never goes negative.
	p.StockTotal = 8
	require.EqualValues(t, 0, p.StockAvailable())
	require.True(t, p.OutOfStock())
}

func TestCategoryLifecycle(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeRecorder{})

	cat, err := svc.CreateCategory(context.Background(), admin, CategoryRequest{Name: "Tools"})
	require.NoError(t, err)

	cat, err = svc.UpdateCategory(context.Background(), admin, cat.ID, CategoryRequest{Name: "Hand tools"})
	require.NoError(t, err)
	require.Equal(t, "Hand tools", cat.Name)

	require.NoError(t, svc.DeleteCategory(context.Background(), admin, cat.ID))
	_, err = svc.GetCategory(context.Background(), cat.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
