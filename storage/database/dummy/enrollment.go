package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/enrollment"
)

type enrollmentRepository struct {
	db *enrollmentTables
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db.enrollment}
}

func (repo *enrollmentRepository) CreateImportJob(ctx context.Context, job enrollment.ImportJob) (enrollment.ImportJob, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	job.ID = uuid.New().String()
	cp := job
	repo.db.jobs[job.ID] = &cp
	return job, nil
}

func (repo *enrollmentRepository) GetImportJobByID(ctx context.Context, id string) (enrollment.ImportJob, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if job, ok := repo.db.jobs[id]; ok {
		return *job, nil
	}
	return enrollment.ImportJob{}, enrollment.ErrJobNotFound
}

func (repo *enrollmentRepository) UpdateImportJob(ctx context.Context, job enrollment.ImportJob) (enrollment.ImportJob, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.jobs[job.ID]; !ok {
		return enrollment.ImportJob{}, enrollment.ErrJobNotFound
	}
	cp := job
	repo.db.jobs[job.ID] = &cp
	return job, nil
}

func (repo *enrollmentRepository) QueryImportJobsBySchool(ctx context.Context, schoolID string, ordering ...core.DBOrdering) ([]enrollment.ImportJob, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	jobs := make([]enrollment.ImportJob, 0)
	for _, job := range repo.db.jobs {
		if job.SchoolID == schoolID {
			jobs = append(jobs, *job)
		}
	}

	// newest first unless told otherwise
	less := func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) }
	if len(ordering) > 0 && ordering[0].Field == "created_at" && ordering[0].Ascending {
		less = func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) }
	}
	sort.Slice(jobs, less)
	return jobs, nil
}

func (repo *enrollmentRepository) CreateOutcome(ctx context.Context, o enrollment.RowOutcome) (enrollment.RowOutcome, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	o.ID = uuid.New().String()
	repo.db.outcomes = append(repo.db.outcomes, o)
	return o, nil
}

func (repo *enrollmentRepository) QueryOutcomesByJob(ctx context.Context, jobID string) ([]enrollment.RowOutcome, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	outcomes := make([]enrollment.RowOutcome, 0)
	for _, o := range repo.db.outcomes {
		if o.JobID == jobID {
			outcomes = append(outcomes, o)
		}
	}
	return outcomes, nil
}

func (repo *enrollmentRepository) CreateStudent(ctx context.Context, st enrollment.Student) (enrollment.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	st.ID = uuid.New().String()
	cp := st
	repo.db.students[st.ID] = &cp
	return st, nil
}

func (repo *enrollmentRepository) NextEnrollmentSequence(ctx context.Context, schoolID string, year int) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := sequenceKey{schoolID: schoolID, year: year}
	repo.db.sequences[key]++
	return repo.db.sequences[key], nil
}

func (repo *enrollmentRepository) CreateRelationship(ctx context.Context, rel enrollment.Relationship) (enrollment.Relationship, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rel.ID = uuid.New().String()
	cp := rel
	cp.ChildIDs = append([]string(nil), rel.ChildIDs...)
	repo.db.relationships[rel.ID] = &cp
	return rel, nil
}

func (repo *enrollmentRepository) GetPendingRelationshipByParent(ctx context.Context, parentID, schoolID string) (enrollment.Relationship, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *enrollment.Relationship
	for _, rel := range repo.db.relationships {
		if rel.ParentID != parentID || rel.SchoolID != schoolID || rel.IsVerified {
			continue
		}
		if latest == nil || rel.CreatedAt.After(latest.CreatedAt) {
			latest = rel
		}
	}
	if latest == nil {
		return enrollment.Relationship{}, enrollment.ErrRelationshipNotFound
	}
	return *latest, nil
}

func (repo *enrollmentRepository) AddRelationshipChild(ctx context.Context, id, studentID string) (enrollment.Relationship, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rel, ok := repo.db.relationships[id]
	if !ok || rel.IsVerified {
		return enrollment.Relationship{}, enrollment.ErrRelationshipNotFound
	}
	rel.ChildIDs = append(rel.ChildIDs, studentID)
	return *rel, nil
}

func (repo *enrollmentRepository) GetPendingRelationshipByCode(ctx context.Context, code string, now time.Time) (enrollment.Relationship, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rel := range repo.db.relationships {
		if rel.VerificationCode == code && !rel.IsVerified && rel.VerificationExpiresAt.After(now) {
			return *rel, nil
		}
	}
	return enrollment.Relationship{}, enrollment.ErrRelationshipNotFound
}

func (repo *enrollmentRepository) VerifyRelationship(ctx context.Context, id string, at time.Time) (enrollment.Relationship, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rel, ok := repo.db.relationships[id]
	if !ok || rel.IsVerified {
		// already verified counts as gone; a code is single-use
		return enrollment.Relationship{}, enrollment.ErrRelationshipNotFound
	}
	rel.IsVerified = true
	rel.VerifiedAt.SetValid(at)
	return *rel, nil
}
