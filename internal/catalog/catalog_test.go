package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	mu         sync.Mutex
	categories map[string]*Category
	services   map[string]*RepairService
	parts      map[string]*SparePart
	errOnSave  error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		categories: map[string]*Category{},
		services:   map[string]*RepairService{},
		parts:      map[string]*SparePart{},
	}
}

func (r *stubRepo) ListCategories(ctx context.Context) ([]Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Category{}
	for _, c := range r.categories {
		out = append(out, *c)
	}
	return out, nil
}

func (r *stubRepo) GetCategory(ctx context.Context, id string) (*Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *stubRepo) CreateCategory(ctx context.Context, c *Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.categories {
		if existing.Slug == c.Slug {
			return ErrDuplicateSlug
		}
	}
	cp := *c
	r.categories[c.ID] = &cp
	return nil
}

func (r *stubRepo) ListServices(ctx context.Context, f ServiceFilter) ([]RepairService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []RepairService{}
	for _, s := range r.services {
		if !s.IsActive || (f.CategoryID != "" && s.CategoryID != f.CategoryID) ||
			(f.ServiceType != "" && s.ServiceType != f.ServiceType) {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *stubRepo) GetService(ctx context.Context, id string) (*RepairService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *stubRepo) CreateService(ctx context.Context, s *RepairService) error {
	if r.errOnSave != nil {
		return r.errOnSave
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.services[s.ID] = &cp
	return nil
}

func (r *stubRepo) UpdateService(ctx context.Context, s *RepairService) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[s.ID]; !ok {
		return ErrServiceNotFound
	}
	cp := *s
	r.services[s.ID] = &cp
	return nil
}

func (r *stubRepo) DeactivateService(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return ErrServiceNotFound
	}
	s.IsActive = false
	return nil
}

func (r *stubRepo) ListParts(ctx context.Context, f PartFilter) ([]SparePart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []SparePart{}
	for _, p := range r.parts {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubRepo) GetPart(ctx context.Context, id string) (*SparePart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parts[id]
	if !ok {
		return nil, ErrPartNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubRepo) CreatePart(ctx context.Context, p *SparePart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.parts {
		if existing.PartNumber == p.PartNumber {
			return ErrDuplicatePartNumber
		}
	}
	cp := *p
	r.parts[p.ID] = &cp
	return nil
}

func (r *stubRepo) UpdatePart(ctx context.Context, p *SparePart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.parts[p.ID]; !ok {
		return ErrPartNotFound
	}
	cp := *p
	r.parts[p.ID] = &cp
	return nil
}

func (r *stubRepo) DeactivatePart(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parts[id]
	if !ok {
		return ErrPartNotFound
	}
	p.IsActive = false
	return nil
}

func newTestCatalog(t *testing.T) (*Catalog, *stubRepo, *Category) {
	t.Helper()
	repo := newStubRepo()
	c := New(repo)
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	cat, err := c.CreateCategory(context.Background(), CategoryInput{Name: "Washing Machine"})
	require.NoError(t, err)
	return c, repo, cat
}

func TestCreateCategory(t *testing.T) {
	c, _, cat := newTestCatalog(t)
	assert.Equal(t, "washing-machine", cat.Slug)
	assert.True(t, cat.IsActive)

	_, err := c.CreateCategory(context.Background(), CategoryInput{Name: "Washing  Machine!"})
	assert.ErrorIs(t, err, ErrDuplicateSlug)

	_, err = c.CreateCategory(context.Background(), CategoryInput{Name: "   "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateServiceDefaults(t *testing.T) {
	c, _, cat := newTestCatalog(t)

	s, err := c.CreateService(context.Background(), ServiceInput{
		Name:        "Drum repair",
		CategoryID:  cat.ID,
		ServiceType: ServiceRepair,
		Price:       ServicePrice{Base: decimal.RequireFromString("499.999")},
	})
	require.NoError(t, err)

	assert.True(t, s.IsActive)
	assert.Equal(t, "INR", s.Price.Currency)
	assert.Equal(t, "500", s.Price.Base.String())
	assert.Equal(t, 60, s.DurationMinutes)
	assert.NotNil(t, s.IncludedServices)
}

func TestCreateServiceValidation(t *testing.T) {
	c, _, cat := newTestCatalog(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   ServiceInput
		kind apperr.Kind
	}{
		{"missing name", ServiceInput{CategoryID: cat.ID, ServiceType: ServiceRepair}, apperr.KindValidation},
		{"bad type", ServiceInput{Name: "x", CategoryID: cat.ID, ServiceType: "polishing"}, apperr.KindValidation},
		{"negative price", ServiceInput{Name: "x", CategoryID: cat.ID, ServiceType: ServiceCleaning,
			Price: ServicePrice{Base: decimal.NewFromInt(-1)}}, apperr.KindValidation},
		{"unknown category", ServiceInput{Name: "x", CategoryID: "nope", ServiceType: ServiceCleaning}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CreateService(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestDeactivateServiceHidesFromList(t *testing.T) {
	c, _, cat := newTestCatalog(t)
	ctx := context.Background()

	s, err := c.CreateService(ctx, ServiceInput{Name: "Install", CategoryID: cat.ID, ServiceType: ServiceInstallation})
	require.NoError(t, err)

	require.NoError(t, c.DeactivateService(ctx, s.ID))

	list, err := c.ListServices(ctx, ServiceFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := c.GetService(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestCreateAndUpdatePart(t *testing.T) {
	c, _, cat := newTestCatalog(t)
	ctx := context.Background()
	from, to := 2015, 2020

	in := PartInput{
		Name:          "Door gasket",
		PartNumber:    "DG-100",
		CategoryID:    cat.ID,
		Compatibility: []Compatibility{{Brand: "LG", Models: []string{"FH4"}, YearFrom: &from, YearTo: &to}},
		Price:         PartPrice{Amount: decimal.NewFromInt(1200)},
		Stock:         5,
	}
	p, err := c.CreatePart(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "INR", p.Price.Currency)
	assert.NotNil(t, p.Specifications)

	_, err = c.CreatePart(ctx, in)
	assert.ErrorIs(t, err, ErrDuplicatePartNumber)

	in.Stock = -1
	_, err = c.UpdatePart(ctx, p.ID, in)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	in.Stock = 9
	updated, err := c.UpdatePart(ctx, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Stock)

	_, err = c.UpdatePart(ctx, "missing", in)
	assert.True(t, errors.Is(err, ErrPartNotFound))
}

func TestPartCompatibilityYearsValidated(t *testing.T) {
	c, _, cat := newTestCatalog(t)
	from, to := 2022, 2020

	_, err := c.CreatePart(context.Background(), PartInput{
		Name: "Pump", PartNumber: "P-1", CategoryID: cat.ID,
		Compatibility: []Compatibility{{Brand: "Bosch", YearFrom: &from, YearTo: &to}},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "air-conditioner", Slugify("  Air Conditioner "))
	assert.Equal(t, "tv-led-lcd", Slugify("TV (LED/LCD)"))
	assert.Equal(t, "", Slugify("!!!"))
}
