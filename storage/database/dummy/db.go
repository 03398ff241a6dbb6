package dummydb

import (
	"sync"

	"github.com/ifeobi/sms-backend/core/enrollment"
	"github.com/ifeobi/sms-backend/core/school"
	"github.com/ifeobi/sms-backend/core/user"
)

type (
	DB struct {
		user       *userTable
		school     *schoolTable
		enrollment *enrollmentTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		schools map[string]*school.School
		levels  map[string]*school.Level
		classes map[string]*school.Class
	}

	enrollmentTables struct {
		sync.RWMutex
		jobs          map[string]*enrollment.ImportJob
		outcomes      []enrollment.RowOutcome
		students      map[string]*enrollment.Student
		relationships map[string]*enrollment.Relationship
		sequences     map[sequenceKey]int
	}

	sequenceKey struct {
		schoolID string
		year     int
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		school: &schoolTable{
			schools: make(map[string]*school.School),
			levels:  make(map[string]*school.Level),
			classes: make(map[string]*school.Class),
		},
		enrollment: &enrollmentTables{
			jobs:          make(map[string]*enrollment.ImportJob),
			students:      make(map[string]*enrollment.Student),
			relationships: make(map[string]*enrollment.Relationship),
			sequences:     make(map[sequenceKey]int),
		},
	}
	return db, nil
}
