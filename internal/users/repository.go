package users

import (
	"context"
	"time"

	"github.com/accountd/accountd/internal/domain"
)

// Repository defines the interface for user data operations.
// Every read and write only sees records that are not soft-deleted.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, filter ListFilter) ([]domain.User, int, error)
	UpdateUser(ctx context.Context, id string, changes Changes) (*domain.User, error)
	SoftDeleteUser(ctx context.Context, id string, at time.Time) error
}

// SortField is a sortable attribute exposed to clients.
type SortField string

// Allowed sort fields.
const (
	SortByEmail     SortField = "email"
	SortByRole      SortField = "role"
	SortByCreatedAt SortField = "createdAt"
	SortByFirstName SortField = "profile.firstName"
	SortByLastName  SortField = "profile.lastName"
)

// ParseSortField returns the allow-listed field or SortByCreatedAt.
func ParseSortField(s string) SortField {
	switch f := SortField(s); f {
	case SortByEmail, SortByRole, SortByCreatedAt, SortByFirstName, SortByLastName:
		return f
	}
	return SortByCreatedAt
}

// SortOrder is the listing direction.
type SortOrder string

// Sort orders.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder returns SortAsc for "asc" and SortDesc for anything else.
func ParseSortOrder(s string) SortOrder {
	if s == string(SortAsc) {
		return SortAsc
	}
	return SortDesc
}

// ListFilter represents sanitized criteria for listing users.
type ListFilter struct {
	Search    string
	SortField SortField
	SortOrder SortOrder
	Offset    int
	Limit     int
}

// Changes is the sparse field-set of a partial update.
// Nil pointers and unset Optionals are left untouched.
type Changes struct {
	Email     *string
	Role      *domain.Role
	FirstName *string
	LastName  *string
	BirthDate domain.Optional[time.Time]
	Phone     domain.Optional[string]
}

// IsEmpty reports whether no field would be written.
func (c Changes) IsEmpty() bool {
	return c.Email == nil &&
		c.Role == nil &&
		c.FirstName == nil &&
		c.LastName == nil &&
		!c.BirthDate.Set &&
		!c.Phone.Set
}
