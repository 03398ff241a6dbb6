package enrollment

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/ifeobi/sms-backend/core"
)

// Import job statuses.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Row outcome statuses.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)

// RelationshipTypeParent is the only relationship type the import pipeline creates.
const RelationshipTypeParent = "PARENT"

// ImportJob is one bulk-import submission and its lifecycle. It is never
// deleted by the pipeline; completed jobs are retained for audit.
type ImportJob struct {
	ID                string     `json:"id"`
	SchoolID          string     `json:"school_id"`
	ImportedBy        string     `json:"imported_by"`
	TotalRecords      int        `json:"total_records"`
	SuccessfulRecords int        `json:"successful_records"`
	FailedRecords     int        `json:"failed_records"`
	Status            string     `json:"status"`
	ErrorLog          []RowError `json:"error_log,omitempty"`
	CreatedAt         time.Time  `json:"created_at"` // UTC
	StartedAt         null.Time  `json:"started_at"`
	CompletedAt       null.Time  `json:"completed_at"`
}

// Processed returns the number of rows accounted for so far.
func (j ImportJob) Processed() int {
	return j.SuccessfulRecords + j.FailedRecords
}

func (j ImportJob) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// RowError is one entry of a job's error log.
type RowError struct {
	Row        int    `json:"row"` // 1-based input position
	Identifier string `json:"identifier,omitempty"`
	Message    string `json:"message"`
}

// RowOutcome records the result of processing one input row. One is created
// per row, immutable thereafter.
type RowOutcome struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	StudentID    string    `json:"student_id,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// Student is a student profile; the account itself lives in core/user.
type Student struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	SchoolID      string    `json:"school_id"`
	StudentNumber string    `json:"student_number"`
	Sex           string    `json:"sex"`
	DateOfBirth   time.Time `json:"date_of_birth"`
	LevelID       string    `json:"level_id"`
	ClassID       string    `json:"class_id"`
	GuardianPhone string    `json:"guardian_phone,omitempty"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// Relationship links a parent account to one or more students within a
// school. It is created UNVERIFIED with a short-lived code; only the
// verification path may flip IsVerified.
type Relationship struct {
	ID                    string    `json:"id"`
	ParentID              string    `json:"parent_id"`
	SchoolID              string    `json:"school_id"`
	ChildIDs              []string  `json:"child_ids"`
	RelationshipType      string    `json:"relationship_type"`
	VerificationCode      string    `json:"-"`
	VerificationExpiresAt time.Time `json:"verification_expires_at"`
	IsVerified            bool      `json:"is_verified"`
	VerifiedAt            null.Time `json:"verified_at"`
	CreatedAt             time.Time `json:"created_at"` // UTC
}

// StudentRow is one student+parent record of a roster. Field validation
// runs per row inside the processor so one malformed row is logged and
// counted without sinking the rest of the batch.
type StudentRow struct {
	FullName       string `json:"fullName" validate:"required"`
	Sex            string `json:"sex" validate:"required,oneof=MALE FEMALE"`
	DateOfBirth    string `json:"dateOfBirth" validate:"required,dateonly"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone"`
	ParentFullName string `json:"parentFullName" validate:"required"`
	ParentEmail    string `json:"parentEmail" validate:"required,email"`
	ParentPhone    string `json:"parentPhone"`
	LevelID        string `json:"levelId"`
	ClassID        string `json:"classId"`
}

func (r *StudentRow) Validate() error {
	r.FullName = core.CleanString(r.FullName)
	r.Sex = strings.ToUpper(core.CleanString(r.Sex))
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.ParentFullName = core.CleanString(r.ParentFullName)
	r.ParentEmail = core.CleanString(r.ParentEmail, true /* lower */)
	return core.Validate.Struct(r)
}

// Identifier is what a row is referred to as in the job's error log.
func (r StudentRow) Identifier() string {
	if r.Email != "" {
		return r.Email
	}
	return r.FullName
}

// ParsedDateOfBirth assumes a prior successful Validate.
func (r StudentRow) ParsedDateOfBirth() time.Time {
	dob, _ := time.Parse(core.DateOnlyFormat, r.DateOfBirth)
	return dob
}

// NewImport is a full roster submission.
type NewImport struct {
	Students     []StudentRow `json:"students" validate:"required,min=1"`
	AcademicYear int          `json:"academicYear" validate:"omitempty,min=2000,max=2100"`
	LevelID      string       `json:"levelId"`
	ClassID      string       `json:"classId"`
}

func (ni *NewImport) Validate() error {
	return core.Validate.Struct(ni)
}

// Progress is the read-only projection served to polling clients.
type Progress struct {
	ID                     string     `json:"id"`
	Status                 string     `json:"status"`
	TotalRecords           int        `json:"total_records"`
	SuccessfulRecords      int        `json:"successful_records"`
	FailedRecords          int        `json:"failed_records"`
	Progress               int        `json:"progress"` // percent
	EstimatedTimeRemaining *int       `json:"estimated_time_remaining,omitempty"` // whole seconds
	Errors                 []RowError `json:"errors,omitempty"`
}

// Verification is the result of a successful parent code redemption.
type Verification struct {
	ParentID  string `json:"parent_id"`
	StudentID string `json:"student_id"`
}

// Notifier delivers pipeline emails. All sends are fire-and-forget from the
// pipeline's perspective; implementations log their own failures.
type (
	StudentWelcome struct {
		To          string
		StudentName string
		Email       string
		Password    string
		SchoolName  string
	}

	ParentWelcome struct {
		To         string
		ParentName string
		Email      string
		Password   string
	}

	ParentInvitation struct {
		To               string
		ParentName       string
		StudentName      string
		VerificationCode string
	}

	Notifier interface {
		SendStudentWelcome(m StudentWelcome)
		SendParentWelcome(m ParentWelcome)
		SendParentInvitation(m ParentInvitation)
	}
)
