package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/school"
)

// addSchool creates a school seeded with one active level and class so the
// import pipeline always has a fallback placement.
func (cli *commandLine) addSchool(name, levelName, className string) error {
	ctx := context.Background()

	sch, err := cli.schoolRepo.CreateSchool(ctx, school.School{
		Name:      core.CleanString(name),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	lvl, err := cli.schoolRepo.CreateLevel(ctx, school.Level{
		SchoolID: sch.ID,
		Name:     core.CleanString(levelName),
		Position: 1,
		IsActive: true,
	})
	if err != nil {
		return err
	}

	if _, err = cli.schoolRepo.CreateClass(ctx, school.Class{
		LevelID:  lvl.ID,
		Name:     core.CleanString(className),
		IsActive: true,
	}); err != nil {
		return err
	}

	fmt.Printf("school created: %s\n", sch.ID)
	return nil
}
