package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ifeobi/sms-backend/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists for this account type")
)

type (
	Repository interface {
		// CreateUser persists a new user. It returns ErrEmailExists when a
		// user with the same (email, type) already exists; implementations
		// must rely on a storage-level unique constraint, not a prior read.
		CreateUser(ctx context.Context, usr User) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmailAndType(ctx context.Context, email, userType string) (User, error)
		SetUserLastLogin(ctx context.Context, id string, lastLogin time.Time) (User, error)
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		// GetOrCreate returns the existing user for (email, type) or creates
		// one. The second return value reports whether a user was created.
		// Concurrent callers racing on the same (email, type) converge on a
		// single account.
		GetOrCreate(ctx context.Context, nu NewUser) (User, bool, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmailAndType(ctx context.Context, email, userType string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Type:      nu.Type,
		Name:      core.CleanString(nu.Name),
		Email:     core.CleanString(nu.Email, true /* lower */),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) GetOrCreate(ctx context.Context, nu NewUser) (User, bool, error) {
	email := core.CleanString(nu.Email, true /* lower */)

	usr, err := svc.repo.GetUserByEmailAndType(ctx, email, nu.Type)
	if err == nil {
		return usr, false, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return User{}, false, errors.Wrap(err, "finding user by email and type")
	}

	usr, err = svc.Create(ctx, nu)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			// a concurrent caller won the race; the unique constraint on
			// (email, type) is the arbiter - re-fetch and reuse.
			usr, err = svc.repo.GetUserByEmailAndType(ctx, email, nu.Type)
			if err != nil {
				return User{}, false, errors.Wrap(err, "re-fetching user after unique violation")
			}
			return usr, false, nil
		}
		return User{}, false, err
	}
	return usr, true, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmailAndType(ctx context.Context, email, userType string) (User, error) {
	return svc.repo.GetUserByEmailAndType(ctx, core.CleanString(email, true /* lower */), userType)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	return svc.repo.SetUserLastLogin(ctx, usr.ID, time.Now().UTC())
}
