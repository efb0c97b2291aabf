// Package postgres provides PostgreSQL implementation of the users repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/accountd/accountd/internal/domain"
	pgutil "github.com/accountd/accountd/internal/pkg/postgres"
	"github.com/accountd/accountd/internal/users"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// emailIndex is the partial unique index over live users' emails.
const emailIndex = "uniq_users_email_not_deleted"

const userColumns = `id, email, password_hash, role, first_name, last_name, birth_date, phone, created_at, updated_at, deleted_at`

// sortColumns maps allow-listed sort fields to columns.
var sortColumns = map[users.SortField]string{
	users.SortByEmail:     "email",
	users.SortByRole:      "role",
	users.SortByCreatedAt: "created_at",
	users.SortByFirstName: "first_name",
	users.SortByLastName:  "last_name",
}

// Repository implements users.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a user and fills in its id and timestamps.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (email, password_hash, role, first_name, last_name, birth_date, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Profile.FirstName,
		user.Profile.LastName,
		user.Profile.BirthDate,
		user.Profile.Phone,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if pgutil.IsUniqueViolation(err, emailIndex) {
			return users.ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a live user by id.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, users.ErrUserNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a live user by normalized email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// ListUsers returns one page of live users and the total number of matches.
func (r *Repository) ListUsers(ctx context.Context, filter users.ListFilter) ([]domain.User, int, error) {
	query, args := buildListQuery(filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	result := make([]domain.User, 0, filter.Limit)
	total := 0
	for rows.Next() {
		var user domain.User
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.Profile.FirstName,
			&user.Profile.LastName,
			&user.Profile.BirthDate,
			&user.Profile.Phone,
			&user.CreatedAt,
			&user.UpdatedAt,
			&user.DeletedAt,
			&total,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		result = append(result, user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	// The window count is only available when the page has rows.
	if len(result) == 0 && filter.Offset > 0 {
		total, err = r.countUsers(ctx, filter.Search)
		if err != nil {
			return nil, 0, err
		}
	}

	return result, total, nil
}

func (r *Repository) countUsers(ctx context.Context, search string) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`
	var args []any
	if search != "" {
		query += ` AND (first_name ILIKE $1 ESCAPE '\' OR last_name ILIKE $1 ESCAPE '\')`
		args = append(args, likePattern(search))
	}

	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

// UpdateUser applies changes to a live user and returns the updated record.
func (r *Repository) UpdateUser(ctx context.Context, id string, changes users.Changes) (*domain.User, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, users.ErrUserNotFound
	}

	query, args := buildUpdateQuery(id, changes)

	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		if pgutil.IsUniqueViolation(err, emailIndex) {
			return nil, users.ErrEmailExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// SoftDeleteUser marks a live user as deleted.
func (r *Repository) SoftDeleteUser(ctx context.Context, id string, at time.Time) error {
	id, ok := canonicalID(id)
	if !ok {
		return users.ErrUserNotFound
	}

	query := `UPDATE users SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Profile.FirstName,
		&user.Profile.LastName,
		&user.Profile.BirthDate,
		&user.Profile.Phone,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// buildListQuery renders the listing query. Only allow-listed column names
// are interpolated; the search term is always a bind parameter.
func buildListQuery(filter users.ListFilter) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, 3)

	sb.WriteString(`SELECT ` + userColumns + `, COUNT(*) OVER() AS total FROM users WHERE deleted_at IS NULL`)

	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		p := "$" + strconv.Itoa(len(args))
		sb.WriteString(` AND (first_name ILIKE ` + p + ` ESCAPE '\' OR last_name ILIKE ` + p + ` ESCAPE '\')`)
	}

	column, ok := sortColumns[filter.SortField]
	if !ok {
		column = sortColumns[users.SortByCreatedAt]
	}
	direction := "DESC"
	if filter.SortOrder == users.SortAsc {
		direction = "ASC"
	}
	sb.WriteString(` ORDER BY ` + column + ` ` + direction + `, id ` + direction)

	args = append(args, filter.Limit)
	sb.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	args = append(args, filter.Offset)
	sb.WriteString(` OFFSET $` + strconv.Itoa(len(args)))

	return sb.String(), args
}

// buildUpdateQuery renders a sparse UPDATE. $1 is always the id.
func buildUpdateQuery(id string, c users.Changes) (string, []any) {
	sets := make([]string, 0, 7)
	args := []any{id}

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if c.Email != nil {
		set("email", *c.Email)
	}
	if c.Role != nil {
		set("role", *c.Role)
	}
	if c.FirstName != nil {
		set("first_name", *c.FirstName)
	}
	if c.LastName != nil {
		set("last_name", *c.LastName)
	}
	if c.BirthDate.Set {
		set("birth_date", c.BirthDate.Value)
	}
	if c.Phone.Set {
		set("phone", c.Phone.Value)
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE users SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 AND deleted_at IS NULL RETURNING ` + userColumns

	return query, args
}

// likePattern escapes LIKE metacharacters and wraps the term for substring matching.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// canonicalID returns id in canonical UUID form. Ids that are not UUIDs cannot exist.
func canonicalID(raw string) (string, bool) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
