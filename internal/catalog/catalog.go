package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/google/uuid"
)

var (
	ErrCategoryNotFound    = apperr.NotFound("category not found")
	ErrServiceNotFound     = apperr.NotFound("service not found")
	ErrPartNotFound        = apperr.NotFound("spare part not found")
	ErrInsufficientStock   = apperr.Validation("insufficient stock")
	ErrDuplicatePartNumber = apperr.Conflict("part number already exists")
	ErrDuplicateSlug       = apperr.Conflict("category already exists")
)

type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id string) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) error

	ListServices(ctx context.Context, f ServiceFilter) ([]RepairService, error)
	GetService(ctx context.Context, id string) (*RepairService, error)
	CreateService(ctx context.Context, s *RepairService) error
	UpdateService(ctx context.Context, s *RepairService) error
	DeactivateService(ctx context.Context, id string) error

	ListParts(ctx context.Context, f PartFilter) ([]SparePart, error)
	GetPart(ctx context.Context, id string) (*SparePart, error)
	CreatePart(ctx context.Context, p *SparePart) error
	UpdatePart(ctx context.Context, p *SparePart) error
	DeactivatePart(ctx context.Context, id string) error
}

// Catalog serves categories, services and spare parts. Role checks happen
// at the routing layer; this type only validates input.
type Catalog struct {
	repo Repository
	now  func() time.Time
}

func New(repo Repository) *Catalog {
	return &Catalog{repo: repo, now: time.Now}
}

type CategoryInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type ServiceInput struct {
	Name             string       `json:"name"`
	CategoryID       string       `json:"category"`
	Description      string       `json:"description"`
	ServiceType      ServiceType  `json:"serviceType"`
	Price            ServicePrice `json:"price"`
	DurationMinutes  int          `json:"duration"`
	IncludedServices []string     `json:"includedServices"`
	Image            string       `json:"image"`
	IsActive         *bool        `json:"isActive"`
}

type PartInput struct {
	Name           string            `json:"name"`
	PartNumber     string            `json:"partNumber"`
	CategoryID     string            `json:"category"`
	Compatibility  []Compatibility   `json:"compatibility"`
	Description    string            `json:"description"`
	Specifications map[string]string `json:"specifications"`
	Price          PartPrice         `json:"price"`
	Stock          int               `json:"stock"`
	Images         []string          `json:"images"`
	Warranty       Warranty          `json:"warranty"`
	IsActive       *bool             `json:"isActive"`
}

func (in ServiceInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return apperr.Validation("service name is required")
	case in.CategoryID == "":
		return apperr.Validation("service category is required")
	case !in.ServiceType.Valid():
		return apperr.Validation("serviceType must be one of repair, installation, maintenance, cleaning, inspection")
	case in.Price.Base.IsNegative():
		return apperr.Validation("price.base must not be negative")
	case in.DurationMinutes < 0:
		return apperr.Validation("duration must not be negative")
	}
	return nil
}

func (in PartInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return apperr.Validation("part name is required")
	case strings.TrimSpace(in.PartNumber) == "":
		return apperr.Validation("partNumber is required")
	case in.CategoryID == "":
		return apperr.Validation("part category is required")
	case in.Price.Amount.IsNegative():
		return apperr.Validation("price.amount must not be negative")
	case in.Stock < 0:
		return apperr.Validation("stock must not be negative")
	case in.Warranty.Months < 0:
		return apperr.Validation("warranty.months must not be negative")
	}
	for _, c := range in.Compatibility {
		if strings.TrimSpace(c.Brand) == "" {
			return apperr.Validation("compatibility brand is required")
		}
		if c.YearFrom != nil && c.YearTo != nil && *c.YearFrom > *c.YearTo {
			return apperr.Validation("compatibility yearFrom must not exceed yearTo")
		}
	}
	return nil
}

func (c *Catalog) ListCategories(ctx context.Context) ([]Category, error) {
	return c.repo.ListCategories(ctx)
}

func (c *Catalog) GetCategory(ctx context.Context, id string) (*Category, error) {
	return c.repo.GetCategory(ctx, id)
}

func (c *Catalog) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("category name is required")
	}
	slug := in.Slug
	if slug == "" {
		slug = Slugify(name)
	}
	cat := &Category{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        slug,
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   c.now().UTC(),
	}
	if err := c.repo.CreateCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func (c *Catalog) ListServices(ctx context.Context, f ServiceFilter) ([]RepairService, error) {
	return c.repo.ListServices(ctx, f)
}

func (c *Catalog) GetService(ctx context.Context, id string) (*RepairService, error) {
	return c.repo.GetService(ctx, id)
}

func (c *Catalog) CreateService(ctx context.Context, in ServiceInput) (*RepairService, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := c.repo.GetCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	s := &RepairService{ID: uuid.NewString(), CreatedAt: now}
	in.apply(s, now)
	if in.IsActive == nil {
		s.IsActive = true
	}
	if err := c.repo.CreateService(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Catalog) UpdateService(ctx context.Context, id string, in ServiceInput) (*RepairService, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	s, err := c.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.CategoryID != in.CategoryID {
		if _, err := c.repo.GetCategory(ctx, in.CategoryID); err != nil {
			return nil, err
		}
	}
	in.apply(s, c.now().UTC())
	if err := c.repo.UpdateService(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Catalog) DeactivateService(ctx context.Context, id string) error {
	return c.repo.DeactivateService(ctx, id)
}

func (c *Catalog) ListParts(ctx context.Context, f PartFilter) ([]SparePart, error) {
	return c.repo.ListParts(ctx, f)
}

func (c *Catalog) GetPart(ctx context.Context, id string) (*SparePart, error) {
	return c.repo.GetPart(ctx, id)
}

func (c *Catalog) CreatePart(ctx context.Context, in PartInput) (*SparePart, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := c.repo.GetCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	p := &SparePart{ID: uuid.NewString(), CreatedAt: now}
	in.apply(p, now)
	if in.IsActive == nil {
		p.IsActive = true
	}
	if err := c.repo.CreatePart(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Catalog) UpdatePart(ctx context.Context, id string, in PartInput) (*SparePart, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := c.repo.GetPart(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.CategoryID != in.CategoryID {
		if _, err := c.repo.GetCategory(ctx, in.CategoryID); err != nil {
			return nil, err
		}
	}
	in.apply(p, c.now().UTC())
	if err := c.repo.UpdatePart(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Catalog) DeactivatePart(ctx context.Context, id string) error {
	return c.repo.DeactivatePart(ctx, id)
}

func (in ServiceInput) apply(s *RepairService, now time.Time) {
	s.Name = strings.TrimSpace(in.Name)
	s.CategoryID = in.CategoryID
	s.Description = in.Description
	s.ServiceType = in.ServiceType
	s.Price = ServicePrice{Base: in.Price.Base.Round(2), Currency: currencyOr(in.Price.Currency)}
	s.DurationMinutes = in.DurationMinutes
	if s.DurationMinutes == 0 {
		s.DurationMinutes = 60
	}
	s.IncludedServices = nonNil(in.IncludedServices)
	s.Image = in.Image
	if in.IsActive != nil {
		s.IsActive = *in.IsActive
	}
	s.UpdatedAt = now
}

func (in PartInput) apply(p *SparePart, now time.Time) {
	p.Name = strings.TrimSpace(in.Name)
	p.PartNumber = strings.TrimSpace(in.PartNumber)
	p.CategoryID = in.CategoryID
	p.Compatibility = in.Compatibility
	if p.Compatibility == nil {
		p.Compatibility = []Compatibility{}
	}
	p.Description = in.Description
	p.Specifications = in.Specifications
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	p.Price = PartPrice{Amount: in.Price.Amount.Round(2), Currency: currencyOr(in.Price.Currency)}
	p.Stock = in.Stock
	p.Images = nonNil(in.Images)
	p.Warranty = in.Warranty
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	p.UpdatedAt = now
}

func currencyOr(c string) string {
	if c == "" {
		return DefaultCurrency
	}
	return strings.ToUpper(c)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Slugify lowercases name and joins its words with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
