package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/apperror"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin           Role = "admin"
	RoleTechnician      Role = "technician"
	RoleBusinessPartner Role = "business_partner"
	RoleCustomer        Role = "customer"
)

// ParseRole accepts only the closed set of known roles.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleTechnician:
		return RoleTechnician, true
	case RoleBusinessPartner:
		return RoleBusinessPartner, true
	case RoleCustomer:
		return RoleCustomer, true
	default:
		return "", false
	}
}

type User struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	Username     string        `gorm:"size:150;not null;uniqueIndex" json:"username"`
	FullName     string        `gorm:"size:255;not null" json:"full_name"`
	Role         Role          `gorm:"size:32;not null" json:"role"`
	TechnicianID *snowflake.ID `json:"technician_id,omitempty"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
}

func (User) TableName() string { return "users" }

func (u User) Actor() Actor {
	return Actor{
		ID:           u.ID,
		Username:     u.Username,
		Role:         u.Role,
		TechnicianID: u.TechnicianID,
	}
}

// Actor is the resolved identity performing an operation.
type Actor struct {
	ID           snowflake.ID
	Username     string
	Role         Role
	TechnicianID *snowflake.ID
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// OwnsTechnicianAssignment reports whether a technician actor is the one
// assigned to technicianID.
func (a Actor) OwnsTechnicianAssignment(technicianID *snowflake.ID) bool {
	return a.TechnicianID != nil && technicianID != nil && *a.TechnicianID == *technicianID
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
}

var ErrUserNotFound = apperror.NotFound("user_not_found", "user not found")
