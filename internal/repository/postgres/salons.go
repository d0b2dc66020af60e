package postgresrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/salonq/internal/domain"
	"github.com/kirinyoku/salonq/internal/repository"
)

const salonColumns = `id, name, services, staff, chairs, is_online, is_verified,
	rating, reviews_count, revenue, created_at, updated_at`

type SalonRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SalonRepo) With(db DB) *SalonRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SalonRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create registers a salon.
//
// Returns:
//   - error: repository.ErrConflict if a salon with the same name exists.
func (r *SalonRepo) Create(ctx context.Context, s *domain.Salon) error {
	const op = "postgresrepo.SalonRepo.Create"

	services, staff, err := encodeRoster(s.Services, s.Staff)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = r.handle().Exec(ctx,
		`INSERT INTO salons(id, name, services, staff, chairs, is_online, is_verified,
		 	rating, reviews_count, revenue, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.Name, services, staff, s.Chairs, s.IsOnline, s.IsVerified,
		s.Rating, s.ReviewsCount, s.Revenue, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves a salon by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the salon does not exist.
func (r *SalonRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Salon, error) {
	const op = "postgresrepo.SalonRepo.Get"

	var (
		s        domain.Salon
		services []byte
		staff    []byte
	)

	err := r.handle().QueryRow(ctx,
		`SELECT `+salonColumns+` FROM salons WHERE id = $1`,
		id,
	).Scan(
		&s.ID, &s.Name, &services, &staff, &s.Chairs, &s.IsOnline, &s.IsVerified,
		&s.Rating, &s.ReviewsCount, &s.Revenue, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if err := json.Unmarshal(services, &s.Services); err != nil {
		return nil, fmt.Errorf("%s: decode services: %w", op, err)
	}
	if err := json.Unmarshal(staff, &s.Staff); err != nil {
		return nil, fmt.Errorf("%s: decode staff: %w", op, err)
	}

	return &s, nil
}

func (r *SalonRepo) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	const op = "postgresrepo.SalonRepo.SetOnline"

	return r.exec(ctx, op,
		`UPDATE salons SET is_online = $2, updated_at = now() WHERE id = $1`,
		id, online,
	)
}

func (r *SalonRepo) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	const op = "postgresrepo.SalonRepo.SetVerified"

	return r.exec(ctx, op,
		`UPDATE salons SET is_verified = $2, updated_at = now() WHERE id = $1`,
		id, verified,
	)
}

func (r *SalonRepo) ReplaceServices(ctx context.Context, id uuid.UUID, services []domain.SalonService) error {
	const op = "postgresrepo.SalonRepo.ReplaceServices"

	raw, err := json.Marshal(services)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return r.exec(ctx, op,
		`UPDATE salons SET services = $2, updated_at = now() WHERE id = $1`,
		id, raw,
	)
}

func (r *SalonRepo) ReplaceStaff(ctx context.Context, id uuid.UUID, staff []domain.Staff) error {
	const op = "postgresrepo.SalonRepo.ReplaceStaff"

	raw, err := json.Marshal(staff)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return r.exec(ctx, op,
		`UPDATE salons SET staff = $2, updated_at = now() WHERE id = $1`,
		id, raw,
	)
}

// AddCompletion credits one completed service worth amount to the salon.
func (r *SalonRepo) AddCompletion(ctx context.Context, id uuid.UUID, amount int64) error {
	const op = "postgresrepo.SalonRepo.AddCompletion"

	return r.exec(ctx, op,
		`UPDATE salons
		 SET revenue = revenue + $2, reviews_count = reviews_count + 1, updated_at = now()
		 WHERE id = $1`,
		id, amount,
	)
}

// exec runs a single-row update and reports repository.ErrNotFound when
// no row matched.
func (r *SalonRepo) exec(ctx context.Context, op, sql string, args ...any) error {
	tag, err := r.handle().Exec(ctx, sql, args...)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func encodeRoster(services []domain.SalonService, staff []domain.Staff) ([]byte, []byte, error) {
	if services == nil {
		services = []domain.SalonService{}
	}
	if staff == nil {
		staff = []domain.Staff{}
	}

	rawServices, err := json.Marshal(services)
	if err != nil {
		return nil, nil, err
	}

	rawStaff, err := json.Marshal(staff)
	if err != nil {
		return nil, nil, err
	}

	return rawServices, rawStaff, nil
}
