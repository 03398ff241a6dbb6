package school

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound        = errors.New("school not found")
	ErrNoActiveLevels  = errors.New("No active levels found for school")
	ErrNoActiveClasses = errors.New("No active classes found for level")
)

type Repository interface {
	CreateSchool(ctx context.Context, sch School) (School, error)
	GetSchoolByID(ctx context.Context, id string) (School, error)
	CreateLevel(ctx context.Context, lvl Level) (Level, error)
	GetLevelByID(ctx context.Context, id string) (Level, error)
	// FirstActiveLevel returns the active level with the lowest position
	// for the school, or ErrNoActiveLevels.
	FirstActiveLevel(ctx context.Context, schoolID string) (Level, error)
	CreateClass(ctx context.Context, cls Class) (Class, error)
	GetClassByID(ctx context.Context, id string) (Class, error)
	// FirstActiveClass returns the first active class of the level, or
	// ErrNoActiveClasses.
	FirstActiveClass(ctx context.Context, levelID string) (Class, error)
}
