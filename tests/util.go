package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/ifeobi/sms-backend/core/school"
	"github.com/ifeobi/sms-backend/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, userType string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Type:      userType,
		Name:      name,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateSchool creates an active school seeded with one active level and one
// active class, the minimum a roster import needs for fallback placement.
func CreateSchool(t *testing.T, repo school.Repository, name string) (school.School, school.Level, school.Class) {
	t.Helper()
	ctx := context.Background()

	sch, err := repo.CreateSchool(ctx, school.School{
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}

	lvl, err := repo.CreateLevel(ctx, school.Level{
		SchoolID: sch.ID,
		Name:     "Grade 1",
		Position: 1,
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}

	cls, err := repo.CreateClass(ctx, school.Class{
		LevelID:  lvl.ID,
		Name:     "A",
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return sch, lvl, cls
}
