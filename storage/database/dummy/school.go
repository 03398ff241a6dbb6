package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/ifeobi/sms-backend/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sch.ID = uuid.New().String()
	repo.db.schools[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sch, ok := repo.db.schools[id]; ok {
		return *sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) CreateLevel(ctx context.Context, lvl school.Level) (school.Level, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	lvl.ID = uuid.New().String()
	repo.db.levels[lvl.ID] = &lvl
	return lvl, nil
}

func (repo *schoolRepository) GetLevelByID(ctx context.Context, id string) (school.Level, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if lvl, ok := repo.db.levels[id]; ok {
		return *lvl, nil
	}
	return school.Level{}, school.ErrNotFound
}

func (repo *schoolRepository) FirstActiveLevel(ctx context.Context, schoolID string) (school.Level, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var first *school.Level
	for _, lvl := range repo.db.levels {
		if lvl.SchoolID != schoolID || !lvl.IsActive {
			continue
		}
		if first == nil ||
			lvl.Position < first.Position ||
			(lvl.Position == first.Position && lvl.Name < first.Name) {
			first = lvl
		}
	}
	if first == nil {
		return school.Level{}, school.ErrNoActiveLevels
	}
	return *first, nil
}

func (repo *schoolRepository) CreateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls.ID = uuid.New().String()
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *schoolRepository) GetClassByID(ctx context.Context, id string) (school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return *cls, nil
	}
	return school.Class{}, school.ErrNotFound
}

func (repo *schoolRepository) FirstActiveClass(ctx context.Context, levelID string) (school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var first *school.Class
	for _, cls := range repo.db.classes {
		if cls.LevelID != levelID || !cls.IsActive {
			continue
		}
		if first == nil || cls.Name < first.Name {
			first = cls
		}
	}
	if first == nil {
		return school.Class{}, school.ErrNoActiveClasses
	}
	return *first, nil
}
