package domain

import "time"

// Role is the access level of a user account.
type Role string

// Available roles.
const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// Profile is the personal data embedded in a user record.
type Profile struct {
	FirstName string
	LastName  string
	BirthDate *time.Time
	Phone     *string
}

// User is the persisted account record.
// PasswordHash must never leave the service layer.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	Profile      Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// UserDetailProfile is the profile part of UserDetail.
type UserDetailProfile struct {
	FirstName *string    `json:"firstName"`
	LastName  *string    `json:"lastName"`
	BirthDate *time.Time `json:"birthDate"`
	Phone     *string    `json:"phone"`
}

// UserDetail is the outward shape of a single user.
type UserDetail struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Role      Role              `json:"role"`
	CreatedAt time.Time         `json:"createdAt"`
	Profile   UserDetailProfile `json:"profile"`
}

// UserListProfile is the reduced profile used in list responses.
type UserListProfile struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// UserListItem is the outward shape of a user inside a list page.
type UserListItem struct {
	ID      string          `json:"id"`
	Email   string          `json:"email"`
	Role    Role            `json:"role"`
	Profile UserListProfile `json:"profile"`
}

// UserPage is one page of the user listing.
type UserPage struct {
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int            `json:"total"`
	Items []UserListItem `json:"items"`
}

// ToDetail projects the record to its outward detail shape.
// Empty names are reported as null.
func (u *User) ToDetail() *UserDetail {
	return &UserDetail{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		Profile: UserDetailProfile{
			FirstName: nonEmpty(u.Profile.FirstName),
			LastName:  nonEmpty(u.Profile.LastName),
			BirthDate: u.Profile.BirthDate,
			Phone:     u.Profile.Phone,
		},
	}
}

// ToListItem projects the record to its list shape.
func (u *User) ToListItem() UserListItem {
	return UserListItem{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.Role,
		Profile: UserListProfile{
			FirstName: nonEmpty(u.Profile.FirstName),
			LastName:  nonEmpty(u.Profile.LastName),
		},
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
