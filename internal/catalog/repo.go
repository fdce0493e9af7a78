package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-appliance-care/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, slug, description, is_active, created_at
		FROM categories WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) GetCategory(ctx context.Context, id string) (*Category, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrCategoryNotFound
	}
	var c Category
	err := r.DB.QueryRow(ctx, `SELECT id, name, slug, description, is_active, created_at
		FROM categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

func (r *Repo) CreateCategory(ctx context.Context, c *Category) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO categories(id, name, slug, description, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, c.ID, c.Name, c.Slug, c.Description, c.IsActive, c.CreatedAt)
	if postgres.IsUniqueViolation(err, "categories_slug_key") {
		return ErrDuplicateSlug
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

const serviceColumns = `id, name, category_id, description, service_type, base_price, currency,
	duration_minutes, included_services, image, is_active, created_at, updated_at`

func scanService(row pgx.Row) (*RepairService, error) {
	var s RepairService
	err := row.Scan(&s.ID, &s.Name, &s.CategoryID, &s.Description, &s.ServiceType, &s.Price.Base,
		&s.Price.Currency, &s.DurationMinutes, &s.IncludedServices, &s.Image, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) ListServices(ctx context.Context, f ServiceFilter) ([]RepairService, error) {
	if f.CategoryID != "" && uuid.Validate(f.CategoryID) != nil {
		return []RepairService{}, nil
	}
	where, args := serviceWhere(f)
	rows, err := r.DB.Query(ctx, `SELECT `+serviceColumns+` FROM services WHERE `+where+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	out := []RepairService{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *Repo) GetService(ctx context.Context, id string) (*RepairService, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrServiceNotFound
	}
	s, err := scanService(r.DB.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return s, nil
}

func (r *Repo) CreateService(ctx context.Context, s *RepairService) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO services(`+serviceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		s.ID, s.Name, s.CategoryID, s.Description, s.ServiceType, s.Price.Base, s.Price.Currency,
		s.DurationMinutes, s.IncludedServices, s.Image, s.IsActive, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (r *Repo) UpdateService(ctx context.Context, s *RepairService) error {
	ct, err := r.DB.Exec(ctx, `UPDATE services SET name=$2, category_id=$3, description=$4,
		service_type=$5, base_price=$6, currency=$7, duration_minutes=$8, included_services=$9,
		image=$10, is_active=$11, updated_at=$12 WHERE id=$1`,
		s.ID, s.Name, s.CategoryID, s.Description, s.ServiceType, s.Price.Base, s.Price.Currency,
		s.DurationMinutes, s.IncludedServices, s.Image, s.IsActive, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

func (r *Repo) DeactivateService(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return ErrServiceNotFound
	}
	ct, err := r.DB.Exec(ctx, `UPDATE services SET is_active=false, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("deactivate service: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

const partColumns = `id, name, part_number, category_id, compatibility, description, specifications,
	price, currency, stock, images, warranty_months, warranty_description, is_active, created_at, updated_at`

func scanPart(row pgx.Row) (*SparePart, error) {
	var p SparePart
	err := row.Scan(&p.ID, &p.Name, &p.PartNumber, &p.CategoryID, &p.Compatibility, &p.Description,
		&p.Specifications, &p.Price.Amount, &p.Price.Currency, &p.Stock, &p.Images,
		&p.Warranty.Months, &p.Warranty.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) ListParts(ctx context.Context, f PartFilter) ([]SparePart, error) {
	if f.CategoryID != "" && uuid.Validate(f.CategoryID) != nil {
		return []SparePart{}, nil
	}
	where, args := partWhere(f)
	rows, err := r.DB.Query(ctx, `SELECT `+partColumns+` FROM spare_parts WHERE `+where+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("list spare parts: %w", err)
	}
	defer rows.Close()

	out := []SparePart{}
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repo) GetPart(ctx context.Context, id string) (*SparePart, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrPartNotFound
	}
	p, err := scanPart(r.DB.QueryRow(ctx, `SELECT `+partColumns+` FROM spare_parts WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get spare part: %w", err)
	}
	return p, nil
}

func (r *Repo) CreatePart(ctx context.Context, p *SparePart) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO spare_parts(`+partColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.ID, p.Name, p.PartNumber, p.CategoryID, p.Compatibility, p.Description, p.Specifications,
		p.Price.Amount, p.Price.Currency, p.Stock, p.Images, p.Warranty.Months, p.Warranty.Description,
		p.IsActive, p.CreatedAt, p.UpdatedAt)
	if postgres.IsUniqueViolation(err, "spare_parts_part_number_key") {
		return ErrDuplicatePartNumber
	}
	if err != nil {
		return fmt.Errorf("insert spare part: %w", err)
	}
	return nil
}

func (r *Repo) UpdatePart(ctx context.Context, p *SparePart) error {
	ct, err := r.DB.Exec(ctx, `UPDATE spare_parts SET name=$2, part_number=$3, category_id=$4,
		compatibility=$5, description=$6, specifications=$7, price=$8, currency=$9, stock=$10,
		images=$11, warranty_months=$12, warranty_description=$13, is_active=$14, updated_at=$15
		WHERE id=$1`,
		p.ID, p.Name, p.PartNumber, p.CategoryID, p.Compatibility, p.Description, p.Specifications,
		p.Price.Amount, p.Price.Currency, p.Stock, p.Images, p.Warranty.Months, p.Warranty.Description,
		p.IsActive, p.UpdatedAt)
	if postgres.IsUniqueViolation(err, "spare_parts_part_number_key") {
		return ErrDuplicatePartNumber
	}
	if err != nil {
		return fmt.Errorf("update spare part: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrPartNotFound
	}
	return nil
}

func (r *Repo) DeactivatePart(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return ErrPartNotFound
	}
	ct, err := r.DB.Exec(ctx, `UPDATE spare_parts SET is_active=false, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("deactivate spare part: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrPartNotFound
	}
	return nil
}
