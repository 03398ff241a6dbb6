package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ifeobi/sms-backend/core/school"
)

type schoolRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

type levelRow struct {
	ID       string `db:"id"`
	SchoolID string `db:"school_id"`
	Name     string `db:"name"`
	Position int    `db:"position"`
	IsActive bool   `db:"is_active"`
}

type classRow struct {
	ID       string `db:"id"`
	LevelID  string `db:"level_id"`
	Name     string `db:"name"`
	IsActive bool   `db:"is_active"`
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO schools (id, name, is_active, created_at)
		VALUES (:id, :name, :is_active, :created_at)`,
		schoolRow(sch),
	)
	if err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	var row schoolRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, name, is_active, created_at FROM schools WHERE id = $1`, id)
	if err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "finding school by id")
	}
	return school.School(row), nil
}

func (repo schoolRepository) CreateLevel(ctx context.Context, lvl school.Level) (school.Level, error) {
	lvl.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO levels (id, school_id, name, position, is_active)
		VALUES (:id, :school_id, :name, :position, :is_active)`,
		levelRow(lvl),
	)
	if err != nil {
		return school.Level{}, errors.Wrap(err, "inserting level")
	}
	return lvl, nil
}

func (repo schoolRepository) GetLevelByID(ctx context.Context, id string) (school.Level, error) {
	var row levelRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, school_id, name, position, is_active FROM levels WHERE id = $1`, id)
	if err != nil {
		return school.Level{}, trapNoRowsErr(err, school.ErrNotFound, "finding level by id")
	}
	return school.Level(row), nil
}

func (repo schoolRepository) FirstActiveLevel(ctx context.Context, schoolID string) (school.Level, error) {
	var row levelRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT id, school_id, name, position, is_active FROM levels
		WHERE school_id = $1 AND is_active
		ORDER BY position, name LIMIT 1`,
		schoolID,
	)
	if err != nil {
		return school.Level{}, trapNoRowsErr(err, school.ErrNoActiveLevels, "finding first active level")
	}
	return school.Level(row), nil
}

func (repo schoolRepository) CreateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	cls.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO classes (id, level_id, name, is_active)
		VALUES (:id, :level_id, :name, :is_active)`,
		classRow(cls),
	)
	if err != nil {
		return school.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo schoolRepository) GetClassByID(ctx context.Context, id string) (school.Class, error) {
	var row classRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, level_id, name, is_active FROM classes WHERE id = $1`, id)
	if err != nil {
		return school.Class{}, trapNoRowsErr(err, school.ErrNotFound, "finding class by id")
	}
	return school.Class(row), nil
}

func (repo schoolRepository) FirstActiveClass(ctx context.Context, levelID string) (school.Class, error) {
	var row classRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT id, level_id, name, is_active FROM classes
		WHERE level_id = $1 AND is_active
		ORDER BY name LIMIT 1`,
		levelID,
	)
	if err != nil {
		return school.Class{}, trapNoRowsErr(err, school.ErrNoActiveClasses, "finding first active class")
	}
	return school.Class(row), nil
}
