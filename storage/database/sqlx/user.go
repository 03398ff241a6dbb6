package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ifeobi/sms-backend/core/user"
)

// uniqueViolation is the postgres error code for unique_violation.
const uniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

// trapNoRowsErr maps psql "no rows" to the given sentinel.
func trapNoRowsErr(err, sentinel error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return sentinel
	}
	return errors.Wrap(err, msg)
}

type userRow struct {
	ID           string    `db:"id"`
	Type         string    `db:"type"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	IsActive     bool      `db:"is_active"`
	LastLogin    null.Time `db:"last_login"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) unpack() user.User {
	return user.User(r)
}

func packUser(usr user.User) userRow {
	return userRow(usr)
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

const userColumns = `id, type, name, email, password_hash, is_active, last_login, created_at, updated_at`

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := packUser(usr)

	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO users (id, type, name, email, password_hash, is_active, last_login, created_at, updated_at)
		VALUES (:id, :type, :name, :email, :password_hash, :is_active, :last_login, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	row := packUser(usr)

	var saved userRow
	stmt, err := repo.db.PrepareNamedContext(ctx, `
		INSERT INTO users (id, type, name, email, password_hash, is_active, last_login, created_at, updated_at)
		VALUES (:id, :type, :name, :email, :password_hash, :is_active, :last_login, :created_at, :updated_at)
		ON CONFLICT (email, type) DO UPDATE
		    SET name = EXCLUDED.name,
		        password_hash = EXCLUDED.password_hash,
		        is_active = EXCLUDED.is_active,
		        updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns)
	if err != nil {
		return user.User{}, errors.Wrap(err, "preparing user upsert")
	}
	defer func() { _ = stmt.Close() }()

	if err := stmt.GetContext(ctx, &saved, row); err != nil {
		return user.User{}, errors.Wrap(err, "upserting user")
	}
	return saved.unpack(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by id")
	}
	return row.unpack(), nil
}

func (repo userRepository) GetUserByEmailAndType(ctx context.Context, email, userType string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND type = $2`, email, userType)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by email and type")
	}
	return row.unpack(), nil
}

func (repo userRepository) SetUserLastLogin(ctx context.Context, id string, lastLogin time.Time) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1
		RETURNING `+userColumns,
		id, lastLogin,
	)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "setting user last login")
	}
	return row.unpack(), nil
}
