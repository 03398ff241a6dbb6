package enrollment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/school"
	"github.com/ifeobi/sms-backend/core/user"
)

var (
	// errors
	ErrJobNotFound          = errors.New("import job not found")
	ErrRelationshipNotFound = errors.New("parent relationship not found")
	ErrCodeInvalid          = errors.New("verification code is invalid or has expired")
	ErrCodeMismatch         = errors.New("verification code does not belong to this email")
)

type (
	Repository interface {
		CreateImportJob(ctx context.Context, job ImportJob) (ImportJob, error)
		GetImportJobByID(ctx context.Context, id string) (ImportJob, error)
		// UpdateImportJob persists a progress snapshot or a terminal state.
		UpdateImportJob(ctx context.Context, job ImportJob) (ImportJob, error)
		QueryImportJobsBySchool(ctx context.Context, schoolID string, ordering ...core.DBOrdering) ([]ImportJob, error)

		CreateOutcome(ctx context.Context, o RowOutcome) (RowOutcome, error)
		// QueryOutcomesByJob returns outcomes preserving input-row order.
		QueryOutcomesByJob(ctx context.Context, jobID string) ([]RowOutcome, error)

		CreateStudent(ctx context.Context, st Student) (Student, error)
		// NextEnrollmentSequence atomically reserves and returns the next
		// per-school-per-year sequence value, starting at 1. Concurrent
		// jobs for the same school must never observe the same value.
		NextEnrollmentSequence(ctx context.Context, schoolID string, year int) (int, error)

		CreateRelationship(ctx context.Context, rel Relationship) (Relationship, error)
		GetPendingRelationshipByParent(ctx context.Context, parentID, schoolID string) (Relationship, error)
		AddRelationshipChild(ctx context.Context, id, studentID string) (Relationship, error)
		// GetPendingRelationshipByCode matches an unverified relationship
		// whose code equals `code` and whose expiry is after `now`.
		GetPendingRelationshipByCode(ctx context.Context, code string, now time.Time) (Relationship, error)
		// VerifyRelationship marks the relationship verified. It returns
		// ErrRelationshipNotFound when the relationship is already
		// verified; a code is single-use.
		VerifyRelationship(ctx context.Context, id string, at time.Time) (Relationship, error)
	}

	Service interface {
		// StartImport persists the job header synchronously and schedules
		// the row processing on a detached worker; it never blocks on row
		// processing. Callers observe progress via GetProgress only.
		StartImport(ctx context.Context, schoolID, actorID string, imp NewImport) (ImportJob, error)
		GetProgress(ctx context.Context, jobID string) (Progress, error)
		QueryJobs(ctx context.Context, schoolID string, ordering ...core.DBOrdering) ([]ImportJob, error)
		// VerifyParent redeems a parent verification code. The code is
		// single-use and time-bounded.
		VerifyParent(ctx context.Context, email, code string) (Verification, error)
	}

	service struct {
		repo       Repository
		schoolRepo school.Repository
		usrSvc     user.Service
		notifier   Notifier
		logger     core.Logger

		syncWorker bool // tests only: run the import worker inline
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	schoolRepo school.Repository,
	usrSvc user.Service,
	notifier Notifier,
	logger core.Logger,
) Service {
	return &service{
		repo:       repo,
		schoolRepo: schoolRepo,
		usrSvc:     usrSvc,
		notifier:   notifier,
		logger:     logger,
	}
}

func (svc *service) StartImport(ctx context.Context, schoolID, actorID string, imp NewImport) (ImportJob, error) {
	if err := imp.Validate(); err != nil {
		return ImportJob{}, err
	}
	sch, err := svc.schoolRepo.GetSchoolByID(ctx, schoolID)
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return ImportJob{}, core.NewValidationError(err)
		}
		return ImportJob{}, errors.Wrap(err, "finding school")
	}

	now := nowFunc().UTC()
	job := ImportJob{
		SchoolID:     sch.ID,
		ImportedBy:   actorID,
		TotalRecords: len(imp.Students),
		Status:       StatusProcessing,
		ErrorLog:     []RowError{},
		CreatedAt:    now,
		StartedAt:    null.TimeFrom(now),
	}
	job, err = svc.repo.CreateImportJob(ctx, job)
	if err != nil {
		return ImportJob{}, errors.Wrap(err, "creating import job")
	}

	// the submission call returns immediately; the job's persisted state is
	// the only channel back to the caller from here on.
	if svc.syncWorker {
		svc.runImport(job, sch, imp)
	} else {
		go svc.runImport(job, sch, imp)
	}

	return job, nil
}

// runImport drains the roster through the row processor. A failing row is
// recorded and processing continues; a failing snapshot or outcome write
// aborts the remaining rows and marks the job FAILED.
func (svc *service) runImport(job ImportJob, sch school.School, imp NewImport) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			svc.failJob(ctx, job, fmt.Sprintf("import worker panic: %v", r))
		}
	}()

	year := imp.AcademicYear
	if year == 0 {
		year = nowFunc().UTC().Year()
	}

	interval := core.Conf.Import.SnapshotInterval
	if interval <= 0 {
		interval = 10
	}

	var success, failed int
	errLog := job.ErrorLog

	for i, row := range imp.Students {
		studentID, err := svc.processRow(ctx, job, sch, imp, year, row)

		outcome := RowOutcome{
			JobID:     job.ID,
			StudentID: studentID,
			Status:    OutcomeSuccess,
			CreatedAt: nowFunc().UTC(),
		}
		if err != nil {
			failed++
			msg := rowErrorMessage(err)
			errLog = append(errLog, RowError{Row: i + 1, Identifier: row.Identifier(), Message: msg})
			outcome.Status = OutcomeFailure
			outcome.ErrorMessage = msg
		} else {
			success++
		}

		if _, oErr := svc.repo.CreateOutcome(ctx, outcome); oErr != nil {
			svc.failJob(ctx, job, fmt.Sprintf("recording outcome for row %d: %v", i+1, oErr))
			return
		}

		// snapshot every `interval` rows; the final row always forces one below
		if processed := success + failed; processed%interval == 0 && processed < job.TotalRecords {
			job.SuccessfulRecords = success
			job.FailedRecords = failed
			job.ErrorLog = errLog
			if _, uErr := svc.repo.UpdateImportJob(ctx, job); uErr != nil {
				svc.failJob(ctx, job, fmt.Sprintf("persisting progress snapshot: %v", uErr))
				return
			}
		}
	}

	// terminal snapshot; row failures alone never make a job FAILED
	job.SuccessfulRecords = success
	job.FailedRecords = failed
	job.ErrorLog = errLog
	job.Status = StatusCompleted
	job.CompletedAt = null.TimeFrom(nowFunc().UTC())
	if _, err := svc.repo.UpdateImportJob(ctx, job); err != nil {
		svc.logger.Error(fmt.Sprintf("completing import job %s: %v", job.ID, err), err)
	}
}

// failJob transitions the job to FAILED after an unrecoverable pipeline
// error. Best-effort: at this point persistence may be gone altogether.
func (svc *service) failJob(ctx context.Context, job ImportJob, reason string) {
	svc.logger.Error(fmt.Sprintf("import job %s failed: %s", job.ID, reason))

	job.Status = StatusFailed
	job.ErrorLog = append(job.ErrorLog, RowError{Message: reason})
	job.CompletedAt = null.TimeFrom(nowFunc().UTC())
	if _, err := svc.repo.UpdateImportJob(ctx, job); err != nil {
		svc.logger.Error(fmt.Sprintf("marking import job %s failed: %v", job.ID, err), err)
	}
}

func (svc *service) GetProgress(ctx context.Context, jobID string) (Progress, error) {
	job, err := svc.repo.GetImportJobByID(ctx, jobID)
	if err != nil {
		return Progress{}, err
	}

	p := Progress{
		ID:                job.ID,
		Status:            job.Status,
		TotalRecords:      job.TotalRecords,
		SuccessfulRecords: job.SuccessfulRecords,
		FailedRecords:     job.FailedRecords,
		Errors:            job.ErrorLog,
	}

	processed := job.Processed()
	if job.TotalRecords > 0 {
		p.Progress = processed * 100 / job.TotalRecords
	} else {
		p.Progress = 100
	}

	// only meaningful mid-flight with at least one processed record
	if job.Status == StatusProcessing && processed > 0 && job.StartedAt.Valid {
		elapsed := nowFunc().UTC().Sub(job.StartedAt.Time)
		remaining := job.TotalRecords - processed
		eta := int(elapsed.Seconds() / float64(processed) * float64(remaining))
		p.EstimatedTimeRemaining = &eta
	}
	return p, nil
}

func (svc *service) QueryJobs(ctx context.Context, schoolID string, ordering ...core.DBOrdering) ([]ImportJob, error) {
	return svc.repo.QueryImportJobsBySchool(ctx, schoolID, ordering...)
}

// rowErrorMessage flattens an error into the single line stored in the
// job's error log.
func rowErrorMessage(err error) string {
	switch cause := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		flds := core.TranslateValidationErrors(cause)
		parts := make([]string, 0, len(flds))
		for _, f := range flds {
			parts = append(parts, f.Field+": "+f.Error)
		}
		return strings.Join(parts, "; ")
	case *core.ValidationError:
		if len(cause.Fields) > 0 {
			parts := make([]string, 0, len(cause.Fields))
			for _, f := range cause.Fields {
				parts = append(parts, f.Field+": "+f.Error)
			}
			return strings.Join(parts, "; ")
		}
		return cause.Error()
	default:
		return err.Error()
	}
}
