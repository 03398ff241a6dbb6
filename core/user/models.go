package user

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/ifeobi/sms-backend/core"
)

// Account types. A given email may exist once per type: a parent and a
// student can share an address, two parents cannot.
const (
	TypeAdmin   = "ADMIN"
	TypeParent  = "PARENT"
	TypeStudent = "STUDENT"
)

var AllTypes = []string{TypeAdmin, TypeParent, TypeStudent}

type User struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	IsActive     bool      `json:"is_active"`
	LastLogin    null.Time `json:"last_login"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Type == TypeAdmin }
func (u *User) IsParent() bool  { return u.Type == TypeParent }
func (u *User) IsStudent() bool { return u.Type == TypeStudent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Type     string `json:"type" validate:"required,oneof=ADMIN PARENT STUDENT"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (nu *NewUser) Validate() error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return core.Validate.Struct(nu)
}
