package model

import "time"

// Role names a permission level. The set is closed; see Roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCurator  Role = "curator"
	RoleStandard Role = "standard"
	RoleGuest    Role = "guest"

	DefaultRole = RoleStandard
)

// Roles lists every assignable role.
var Roles = []Role{RoleAdmin, RoleCurator, RoleStandard, RoleGuest}

// ParseRole returns the role named s and whether it exists.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// User is an account. Password holds a bcrypt hash, never plaintext.
type User struct {
	Id               int          `json:"id" gorm:"primaryKey;autoIncrement"`
	Email            string       `json:"email" gorm:"size:256;uniqueIndex;not null"`
	Password         string       `json:"-" gorm:"size:256;not null"`
	Role             Role         `json:"role" gorm:"size:20;not null;default:standard"`
	TotpSecret       string       `json:"-" gorm:"size:64"`
	TwoFactorEnabled bool         `json:"twoFactorEnabled" gorm:"not null;default:false"`
	CreatedAt        time.Time    `json:"createdAt" gorm:"not null"`
	Profile          *UserProfile `json:"profile,omitempty" gorm:"foreignKey:UserId"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// CanModerate reports whether the user may approve, hide or delete comments.
func (u *User) CanModerate() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleCurator)
}

func (u *User) HasTotpSecret() bool {
	return u != nil && u.TotpSecret != ""
}

type UserProfile struct {
	Id          int    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId      int    `json:"userId" gorm:"uniqueIndex;not null"`
	Name        string `json:"name" form:"name" gorm:"size:100;not null"`
	Surname     string `json:"surname" form:"surname" gorm:"size:100;not null"`
	Affiliation string `json:"affiliation" form:"affiliation" gorm:"size:100"`
	Orcid       string `json:"orcid" form:"orcid" gorm:"size:19"`
}

// AuditLog records an administrative action.
type AuditLog struct {
	Id         int       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId     int       `json:"userId" gorm:"index"`
	Email      string    `json:"email"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceId int       `json:"resourceId"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"userAgent"`
	Details    string    `json:"details"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}
