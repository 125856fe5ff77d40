package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleTeacher  UserRole = "TEACHER"
	RoleAcademic UserRole = "ACADEMIC"
	RoleStudent  UserRole = "STUDENT"
)

// StaffRoles are the roles allowed to manage tests, results and grades.
var StaffRoles = []UserRole{RoleAdmin, RoleTeacher, RoleAcademic}

// User represents an application user stored in the users table.
// Teachers carry a specialization and the grades they are assigned to.
type User struct {
	ID                 string         `db:"id" json:"id"`
	Username           string         `db:"username" json:"username"`
	PasswordHash       string         `db:"password_hash" json:"-"`
	FirstName          string         `db:"first_name" json:"first_name"`
	LastName           string         `db:"last_name" json:"last_name"`
	Role               UserRole       `db:"role" json:"role"`
	Specialization     *string        `db:"specialization" json:"specialization,omitempty"`
	Phone              *string        `db:"phone" json:"phone,omitempty"`
	AssignedGrades     pq.StringArray `db:"assigned_grades" json:"assigned_grades,omitempty"`
	MustChangePassword bool           `db:"must_change_password" json:"must_change_password"`
	Active             bool           `db:"active" json:"active"`
	LastLogin          *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
