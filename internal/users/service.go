// Package users provides the user store: creation, lookup, listing, partial update and soft delete of accounts.
package users

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/accountd/accountd/internal/domain"
	"github.com/accountd/accountd/internal/pkg/metrics"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Pagination constants.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// maxPage keeps (page-1)*MaxLimit far from integer overflow.
	maxPage = math.MaxInt32
)

// PasswordHasher hashes plaintext credentials before they are stored.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// Service implements the user store.
type Service struct {
	repo   Repository
	hasher PasswordHasher
	now    func() time.Time
}

// NewService creates a new user store.
func NewService(repo Repository, hasher PasswordHasher) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		now:    time.Now,
	}
}

// ProfileInput holds profile data for a new user.
type ProfileInput struct {
	FirstName string
	LastName  string
	BirthDate *string
	Phone     *string
}

// CreateInput holds data for creating a user.
// An empty Role means USER.
type CreateInput struct {
	Email    string
	Password string
	Role     domain.Role
	Profile  ProfileInput
}

// ProfilePatch holds the profile part of a partial update.
type ProfilePatch struct {
	FirstName domain.Optional[string] `json:"firstName"`
	LastName  domain.Optional[string] `json:"lastName"`
	BirthDate domain.Optional[string] `json:"birthDate"`
	Phone     domain.Optional[string] `json:"phone"`
}

// UpdateInput holds a partial update. Only fields present in the request are applied.
// Null is meaningful for Profile.BirthDate and Profile.Phone; for the other fields it is ignored.
type UpdateInput struct {
	Email   domain.Optional[string]      `json:"email"`
	Role    domain.Optional[domain.Role] `json:"role"`
	Profile *ProfilePatch                `json:"profile"`
}

// ListInput holds raw listing parameters before sanitization.
// Page and Limit are floats so that NaN and infinities from the query string can be told apart.
type ListInput struct {
	Page   float64
	Limit  float64
	Search string
	Sort   string
	Order  string
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// SanitizePage converts a raw page number into a page >= 1.
func SanitizePage(page float64) int {
	if math.IsNaN(page) || math.IsInf(page, 0) {
		return DefaultPage
	}
	p := math.Trunc(page)
	if p < 1 {
		return DefaultPage
	}
	if p > maxPage {
		return maxPage
	}
	return int(p)
}

// SanitizeLimit converts a raw page size into the range [1, MaxLimit].
func SanitizeLimit(limit float64) int {
	if math.IsNaN(limit) || math.IsInf(limit, 0) {
		return DefaultLimit
	}
	l := math.Trunc(limit)
	if l < 1 {
		return 1
	}
	if l > MaxLimit {
		return MaxLimit
	}
	return int(l)
}

// ParseBirthDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseBirthDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidBirthDate
}

// Create stores a new user and returns its id.
func (s *Service) Create(ctx context.Context, input CreateInput) (string, error) {
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.IsValid() {
		return "", ErrInvalidRole
	}

	profile := domain.Profile{
		FirstName: strings.TrimSpace(input.Profile.FirstName),
		LastName:  strings.TrimSpace(input.Profile.LastName),
		Phone:     input.Profile.Phone,
	}
	if input.Profile.BirthDate != nil && *input.Profile.BirthDate != "" {
		birthDate, err := ParseBirthDate(*input.Profile.BirthDate)
		if err != nil {
			return "", err
		}
		profile.BirthDate = &birthDate
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        NormalizeEmail(input.Email),
		PasswordHash: hash,
		Role:         role,
		Profile:      profile,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return "", err
	}

	metrics.RecordUserCreated(string(role))

	return user.ID, nil
}

// FindOne returns the detail view of a live user.
func (s *Service) FindOne(ctx context.Context, id string) (*domain.UserDetail, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.ToDetail(), nil
}

// FindAll returns one page of live users.
func (s *Service) FindAll(ctx context.Context, input ListInput) (*domain.UserPage, error) {
	page := SanitizePage(input.Page)
	limit := SanitizeLimit(input.Limit)

	filter := ListFilter{
		Search:    input.Search,
		SortField: ParseSortField(input.Sort),
		SortOrder: ParseSortOrder(input.Order),
		Offset:    (page - 1) * limit,
		Limit:     limit,
	}

	users, total, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	items := make([]domain.UserListItem, 0, len(users))
	for i := range users {
		items = append(items, users[i].ToListItem())
	}

	return &domain.UserPage{
		Page:  page,
		Limit: limit,
		Total: total,
		Items: items,
	}, nil
}

// FindByEmail returns the full record, hash included, or nil when no live user has the address.
// It is meant for the auth flow only.
func (s *Service) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// Update applies a partial update and returns the updated detail view.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*domain.UserDetail, error) {
	changes, err := buildChanges(input)
	if err != nil {
		return nil, err
	}

	if changes.IsEmpty() {
		return nil, ErrNoFieldsToUpdate
	}

	user, err := s.repo.UpdateUser(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	return user.ToDetail(), nil
}

// Remove soft-deletes a live user.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.repo.SoftDeleteUser(ctx, id, s.now())
}

func buildChanges(input UpdateInput) (Changes, error) {
	var c Changes

	if input.Email.Value != nil {
		email := NormalizeEmail(*input.Email.Value)
		c.Email = &email
	}

	if input.Role.Value != nil {
		role := *input.Role.Value
		if !role.IsValid() {
			return Changes{}, ErrInvalidRole
		}
		c.Role = &role
	}

	if p := input.Profile; p != nil {
		if p.FirstName.Value != nil {
			v := strings.TrimSpace(*p.FirstName.Value)
			c.FirstName = &v
		}
		if p.LastName.Value != nil {
			v := strings.TrimSpace(*p.LastName.Value)
			c.LastName = &v
		}

		c.Phone = p.Phone

		if p.BirthDate.Set {
			if p.BirthDate.Value == nil {
				c.BirthDate = domain.Null[time.Time]()
			} else {
				t, err := ParseBirthDate(*p.BirthDate.Value)
				if err != nil {
					return Changes{}, err
				}
				c.BirthDate = domain.Some(t)
			}
		}
	}

	return c, nil
}
