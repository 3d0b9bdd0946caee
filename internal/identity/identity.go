// Package identity holds the persisted account records and the shapes
// they take in responses.
package identity

import (
	"time"
)

// User is an account that can authenticate with email and password.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      *string   `gorm:"size:255" json:"name"`
	Password  string    `gorm:"size:255;not null" json:"-"` // hashed
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Public returns the identity fields that may leave the service.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}

// PublicUser is the response shape for a user. It never carries the hash.
type PublicUser struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

// Template is a publishable record keyed by email. Its password is hashed
// the same way as a user password.
type Template struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      *string   `gorm:"size:255" json:"name"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Published bool      `gorm:"not null;default:false" json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Template) TableName() string { return "templates" }

// Public returns the template fields that may leave the service.
func (t *Template) Public() PublicTemplate {
	return PublicTemplate{ID: t.ID, Email: t.Email, Name: t.Name, Published: t.Published}
}

// PublicTemplate is the response shape for a template.
type PublicTemplate struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	Published bool    `json:"published"`
}
