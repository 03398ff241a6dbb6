package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/enrollment"
)

type importJobRow struct {
	ID                string    `db:"id"`
	SchoolID          string    `db:"school_id"`
	ImportedBy        string    `db:"imported_by"`
	TotalRecords      int       `db:"total_records"`
	SuccessfulRecords int       `db:"successful_records"`
	FailedRecords     int       `db:"failed_records"`
	Status            string    `db:"status"`
	ErrorLog          []byte    `db:"error_log"`
	CreatedAt         time.Time `db:"created_at"`
	StartedAt         null.Time `db:"started_at"`
	CompletedAt       null.Time `db:"completed_at"`
}

func packImportJob(job enrollment.ImportJob) (importJobRow, error) {
	if job.ErrorLog == nil {
		job.ErrorLog = []enrollment.RowError{}
	}
	errLog, err := json.Marshal(job.ErrorLog)
	if err != nil {
		return importJobRow{}, errors.Wrap(err, "marshalling error log")
	}
	return importJobRow{
		ID:                job.ID,
		SchoolID:          job.SchoolID,
		ImportedBy:        job.ImportedBy,
		TotalRecords:      job.TotalRecords,
		SuccessfulRecords: job.SuccessfulRecords,
		FailedRecords:     job.FailedRecords,
		Status:            job.Status,
		ErrorLog:          errLog,
		CreatedAt:         job.CreatedAt,
		StartedAt:         job.StartedAt,
		CompletedAt:       job.CompletedAt,
	}, nil
}

func (r importJobRow) unpack() (enrollment.ImportJob, error) {
	job := enrollment.ImportJob{
		ID:                r.ID,
		SchoolID:          r.SchoolID,
		ImportedBy:        r.ImportedBy,
		TotalRecords:      r.TotalRecords,
		SuccessfulRecords: r.SuccessfulRecords,
		FailedRecords:     r.FailedRecords,
		Status:            r.Status,
		CreatedAt:         r.CreatedAt,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
	}
	if len(r.ErrorLog) > 0 {
		if err := json.Unmarshal(r.ErrorLog, &job.ErrorLog); err != nil {
			return enrollment.ImportJob{}, errors.Wrap(err, "unmarshalling error log")
		}
	}
	return job, nil
}

type outcomeRow struct {
	ID           string      `db:"id"`
	JobID        string      `db:"job_id"`
	StudentID    null.String `db:"student_id"`
	Status       string      `db:"status"`
	ErrorMessage string      `db:"error_message"`
	CreatedAt    time.Time   `db:"created_at"`
}

type studentRow struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	SchoolID      string    `db:"school_id"`
	StudentNumber string    `db:"student_number"`
	Sex           string    `db:"sex"`
	DateOfBirth   time.Time `db:"date_of_birth"`
	LevelID       string    `db:"level_id"`
	ClassID       string    `db:"class_id"`
	GuardianPhone string    `db:"guardian_phone"`
	CreatedAt     time.Time `db:"created_at"`
}

type relationshipRow struct {
	ID                    string         `db:"id"`
	ParentID              string         `db:"parent_id"`
	SchoolID              string         `db:"school_id"`
	ChildIDs              pq.StringArray `db:"child_ids"`
	RelationshipType      string         `db:"relationship_type"`
	VerificationCode      string         `db:"verification_code"`
	VerificationExpiresAt time.Time      `db:"verification_expires_at"`
	IsVerified            bool           `db:"is_verified"`
	VerifiedAt            null.Time      `db:"verified_at"`
	CreatedAt             time.Time      `db:"created_at"`
}

func (r relationshipRow) unpack() enrollment.Relationship {
	return enrollment.Relationship{
		ID:                    r.ID,
		ParentID:              r.ParentID,
		SchoolID:              r.SchoolID,
		ChildIDs:              []string(r.ChildIDs),
		RelationshipType:      r.RelationshipType,
		VerificationCode:      r.VerificationCode,
		VerificationExpiresAt: r.VerificationExpiresAt,
		IsVerified:            r.IsVerified,
		VerifiedAt:            r.VerifiedAt,
		CreatedAt:             r.CreatedAt,
	}
}

const relationshipColumns = `id, parent_id, school_id, child_ids, relationship_type,
	verification_code, verification_expires_at, is_verified, verified_at, created_at`

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) CreateImportJob(ctx context.Context, job enrollment.ImportJob) (enrollment.ImportJob, error) {
	job.ID = uuid.New().String()
	row, err := packImportJob(job)
	if err != nil {
		return enrollment.ImportJob{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO import_jobs (id, school_id, imported_by, total_records, successful_records,
			failed_records, status, error_log, created_at, started_at, completed_at)
		VALUES (:id, :school_id, :imported_by, :total_records, :successful_records,
			:failed_records, :status, :error_log, :created_at, :started_at, :completed_at)`,
		row,
	)
	if err != nil {
		return enrollment.ImportJob{}, errors.Wrap(err, "inserting import job")
	}
	return job, nil
}

func (repo enrollmentRepository) GetImportJobByID(ctx context.Context, id string) (enrollment.ImportJob, error) {
	var row importJobRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT id, school_id, imported_by, total_records, successful_records, failed_records,
			status, error_log, created_at, started_at, completed_at
		FROM import_jobs WHERE id = $1`,
		id,
	)
	if err != nil {
		return enrollment.ImportJob{}, trapNoRowsErr(err, enrollment.ErrJobNotFound, "finding import job by id")
	}
	return row.unpack()
}

func (repo enrollmentRepository) UpdateImportJob(ctx context.Context, job enrollment.ImportJob) (enrollment.ImportJob, error) {
	row, err := packImportJob(job)
	if err != nil {
		return enrollment.ImportJob{}, err
	}
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE import_jobs
		SET successful_records = :successful_records,
		    failed_records = :failed_records,
		    status = :status,
		    error_log = :error_log,
		    started_at = :started_at,
		    completed_at = :completed_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return enrollment.ImportJob{}, errors.Wrap(err, "updating import job")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return enrollment.ImportJob{}, enrollment.ErrJobNotFound
	}
	return job, nil
}

// jobOrderings whitelists client-specified ordering fields.
var jobOrderings = map[string]bool{
	"created_at":   true,
	"completed_at": true,
	"status":       true,
}

func (repo enrollmentRepository) QueryImportJobsBySchool(ctx context.Context, schoolID string, ordering ...core.DBOrdering) ([]enrollment.ImportJob, error) {
	orderBy := "created_at DESC"
	if len(ordering) > 0 && jobOrderings[ordering[0].Field] {
		orderBy = ordering[0].String()
	}

	var rows []importJobRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT id, school_id, imported_by, total_records, successful_records, failed_records,
			status, error_log, created_at, started_at, completed_at
		FROM import_jobs WHERE school_id = $1 ORDER BY `+orderBy,
		schoolID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying import jobs")
	}

	jobs := make([]enrollment.ImportJob, 0, len(rows))
	for _, row := range rows {
		job, err := row.unpack()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (repo enrollmentRepository) CreateOutcome(ctx context.Context, o enrollment.RowOutcome) (enrollment.RowOutcome, error) {
	o.ID = uuid.New().String()
	row := outcomeRow{
		ID:           o.ID,
		JobID:        o.JobID,
		StudentID:    null.NewString(o.StudentID, o.StudentID != ""),
		Status:       o.Status,
		ErrorMessage: o.ErrorMessage,
		CreatedAt:    o.CreatedAt,
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO import_outcomes (id, job_id, student_id, status, error_message, created_at)
		VALUES (:id, :job_id, :student_id, :status, :error_message, :created_at)`,
		row,
	)
	if err != nil {
		return enrollment.RowOutcome{}, errors.Wrap(err, "inserting outcome")
	}
	return o, nil
}

func (repo enrollmentRepository) QueryOutcomesByJob(ctx context.Context, jobID string) ([]enrollment.RowOutcome, error) {
	var rows []outcomeRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT id, job_id, student_id, status, error_message, created_at
		FROM import_outcomes WHERE job_id = $1 ORDER BY seq`,
		jobID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying outcomes")
	}

	outcomes := make([]enrollment.RowOutcome, 0, len(rows))
	for _, row := range rows {
		outcomes = append(outcomes, enrollment.RowOutcome{
			ID:           row.ID,
			JobID:        row.JobID,
			StudentID:    row.StudentID.String,
			Status:       row.Status,
			ErrorMessage: row.ErrorMessage,
			CreatedAt:    row.CreatedAt,
		})
	}
	return outcomes, nil
}

func (repo enrollmentRepository) CreateStudent(ctx context.Context, st enrollment.Student) (enrollment.Student, error) {
	st.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO students (id, user_id, school_id, student_number, sex, date_of_birth,
			level_id, class_id, guardian_phone, created_at)
		VALUES (:id, :user_id, :school_id, :student_number, :sex, :date_of_birth,
			:level_id, :class_id, :guardian_phone, :created_at)`,
		studentRow(st),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return enrollment.Student{}, errors.New("student number already taken")
		}
		return enrollment.Student{}, errors.Wrap(err, "inserting student")
	}
	return st, nil
}

func (repo enrollmentRepository) NextEnrollmentSequence(ctx context.Context, schoolID string, year int) (int, error) {
	var value int
	err := repo.db.GetContext(ctx, &value, `
		INSERT INTO enrollment_sequences (school_id, year, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (school_id, year) DO UPDATE SET value = enrollment_sequences.value + 1
		RETURNING value`,
		schoolID, year,
	)
	if err != nil {
		return 0, errors.Wrap(err, "reserving enrollment sequence")
	}
	return value, nil
}

func (repo enrollmentRepository) CreateRelationship(ctx context.Context, rel enrollment.Relationship) (enrollment.Relationship, error) {
	rel.ID = uuid.New().String()
	row := relationshipRow{
		ID:                    rel.ID,
		ParentID:              rel.ParentID,
		SchoolID:              rel.SchoolID,
		ChildIDs:              pq.StringArray(rel.ChildIDs),
		RelationshipType:      rel.RelationshipType,
		VerificationCode:      rel.VerificationCode,
		VerificationExpiresAt: rel.VerificationExpiresAt,
		IsVerified:            rel.IsVerified,
		VerifiedAt:            rel.VerifiedAt,
		CreatedAt:             rel.CreatedAt,
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO parent_relationships (id, parent_id, school_id, child_ids, relationship_type,
			verification_code, verification_expires_at, is_verified, verified_at, created_at)
		VALUES (:id, :parent_id, :school_id, :child_ids, :relationship_type,
			:verification_code, :verification_expires_at, :is_verified, :verified_at, :created_at)`,
		row,
	)
	if err != nil {
		return enrollment.Relationship{}, errors.Wrap(err, "inserting relationship")
	}
	return rel, nil
}

func (repo enrollmentRepository) GetPendingRelationshipByParent(ctx context.Context, parentID, schoolID string) (enrollment.Relationship, error) {
	var row relationshipRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT `+relationshipColumns+`
		FROM parent_relationships
		WHERE parent_id = $1 AND school_id = $2 AND NOT is_verified
		ORDER BY created_at DESC LIMIT 1`,
		parentID, schoolID,
	)
	if err != nil {
		return enrollment.Relationship{}, trapNoRowsErr(err, enrollment.ErrRelationshipNotFound, "finding pending relationship by parent")
	}
	return row.unpack(), nil
}

func (repo enrollmentRepository) AddRelationshipChild(ctx context.Context, id, studentID string) (enrollment.Relationship, error) {
	var row relationshipRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE parent_relationships
		SET child_ids = array_append(child_ids, $2)
		WHERE id = $1 AND NOT is_verified
		RETURNING `+relationshipColumns,
		id, studentID,
	)
	if err != nil {
		return enrollment.Relationship{}, trapNoRowsErr(err, enrollment.ErrRelationshipNotFound, "adding relationship child")
	}
	return row.unpack(), nil
}

func (repo enrollmentRepository) GetPendingRelationshipByCode(ctx context.Context, code string, now time.Time) (enrollment.Relationship, error) {
	var row relationshipRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT `+relationshipColumns+`
		FROM parent_relationships
		WHERE verification_code = $1 AND NOT is_verified AND verification_expires_at > $2`,
		code, now,
	)
	if err != nil {
		return enrollment.Relationship{}, trapNoRowsErr(err, enrollment.ErrRelationshipNotFound, "finding pending relationship by code")
	}
	return row.unpack(), nil
}

func (repo enrollmentRepository) VerifyRelationship(ctx context.Context, id string, at time.Time) (enrollment.Relationship, error) {
	var row relationshipRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE parent_relationships
		SET is_verified = TRUE, verified_at = $2
		WHERE id = $1 AND NOT is_verified
		RETURNING `+relationshipColumns,
		id, at,
	)
	if err != nil {
		// no rows: missing or already verified - a code is single-use
		return enrollment.Relationship{}, trapNoRowsErr(err, enrollment.ErrRelationshipNotFound, "verifying relationship")
	}
	return row.unpack(), nil
}
