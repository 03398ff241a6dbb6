package enrollment_test

import (
	"context"
	"io/ioutil"
	"log"
	"strings"
	"testing"

	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/enrollment"
	"github.com/ifeobi/sms-backend/core/school"
	"github.com/ifeobi/sms-backend/core/user"
	logsvc "github.com/ifeobi/sms-backend/services/logger"
	dummydb "github.com/ifeobi/sms-backend/storage/database/dummy"
	"github.com/ifeobi/sms-backend/tests"
)

type testEnv struct {
	repo       enrollment.Repository
	schoolRepo school.Repository
	usrRepo    user.Repository
	notifier   *enrollment.NotifierMock
	svc        enrollment.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	env := &testEnv{
		repo:       dummydb.NewEnrollmentRepository(db),
		schoolRepo: dummydb.NewSchoolRepository(db),
		usrRepo:    dummydb.NewUserRepository(db),
		notifier:   new(enrollment.NotifierMock),
	}
	env.svc = enrollment.NewServiceMock(
		env.repo,
		env.schoolRepo,
		user.NewService(env.usrRepo),
		env.notifier,
		logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0)),
	)
	return env
}

func studentRow(name, email, parentName, parentEmail string) enrollment.StudentRow {
	return enrollment.StudentRow{
		FullName:       name,
		Sex:            "FEMALE",
		DateOfBirth:    "2015-06-01",
		Email:          email,
		ParentFullName: parentName,
		ParentEmail:    parentEmail,
		ParentPhone:    "+243123456789",
	}
}

func TestService_StartImport(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	sch, _, _ := testutil.CreateSchool(t, env.schoolRepo, "Green Hills")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@greenhills.cd", "S3cr3t.Pwd", user.TypeAdmin, true)

	imp := enrollment.NewImport{
		AcademicYear: 2026,
		Students: []enrollment.StudentRow{
			studentRow("Ada Lovelace", "ada@greenhills.cd", "Anne Lovelace", "anne@family.cd"),
			studentRow("Grace Hopper", "grace@greenhills.cd", "Walter Hopper", "walter@family.cd"),
			// Ada's sibling: same parent
			studentRow("Allegra Lovelace", "allegra@greenhills.cd", "Anne Lovelace", "anne@family.cd"),
		},
	}

	job, err := env.svc.StartImport(ctx, sch.ID, admin.ID, imp)
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	if job.Status != enrollment.StatusCompleted {
		t.Errorf("job.Status = %s, want %s", job.Status, enrollment.StatusCompleted)
	}
	if job.SuccessfulRecords != 3 || job.FailedRecords != 0 {
		t.Errorf("job counts = (%d, %d), want (3, 0)", job.SuccessfulRecords, job.FailedRecords)
	}
	if len(job.ErrorLog) != 0 {
		t.Errorf("job.ErrorLog = %v, want empty", job.ErrorLog)
	}
	if !job.StartedAt.Valid || !job.CompletedAt.Valid {
		t.Errorf("job timestamps not set: startedAt=%v completedAt=%v", job.StartedAt, job.CompletedAt)
	}

	// one outcome per row, in input order
	outcomes, err := env.repo.QueryOutcomesByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("QueryOutcomesByJob() error = %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("len(outcomes) = %d, want 3", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Status != enrollment.OutcomeSuccess {
			t.Errorf("outcomes[%d].Status = %s, want %s", i, o.Status, enrollment.OutcomeSuccess)
		}
		if o.StudentID == "" {
			t.Errorf("outcomes[%d].StudentID is empty", i)
		}
	}

	// two parents, three students
	if got := len(env.notifier.ParentWelcomes); got != 2 {
		t.Errorf("len(ParentWelcomes) = %d, want 2", got)
	}
	if got := len(env.notifier.StudentWelcomes); got != 3 {
		t.Errorf("len(StudentWelcomes) = %d, want 3", got)
	}
	if got := len(env.notifier.ParentInvitations); got != 3 {
		t.Errorf("len(ParentInvitations) = %d, want 3", got)
	}

	// siblings share one pending relationship and one code
	var anneCodes []string
	for _, inv := range env.notifier.ParentInvitations {
		if inv.To == "anne@family.cd" {
			anneCodes = append(anneCodes, inv.VerificationCode)
		}
	}
	if len(anneCodes) != 2 || anneCodes[0] != anneCodes[1] {
		t.Errorf("sibling invitation codes = %v, want two identical", anneCodes)
	}

	anne, err := env.usrRepo.GetUserByEmailAndType(ctx, "anne@family.cd", user.TypeParent)
	if err != nil {
		t.Fatalf("GetUserByEmailAndType() error = %v", err)
	}
	rel, err := env.repo.GetPendingRelationshipByParent(ctx, anne.ID, sch.ID)
	if err != nil {
		t.Fatalf("GetPendingRelationshipByParent() error = %v", err)
	}
	if len(rel.ChildIDs) != 2 {
		t.Errorf("len(rel.ChildIDs) = %d, want 2", len(rel.ChildIDs))
	}
	if rel.IsVerified {
		t.Error("rel.IsVerified = true, want false")
	}
}

func TestService_StartImport_rowFailuresAreIsolated(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	sch, _, _ := testutil.CreateSchool(t, env.schoolRepo, "Green Hills")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@greenhills.cd", "S3cr3t.Pwd", user.TypeAdmin, true)

	bad := studentRow("Bad Row", "bad@greenhills.cd", "Bad Parent", "badparent@family.cd")
	bad.Sex = "UNKNOWN"

	imp := enrollment.NewImport{
		AcademicYear: 2026,
		Students: []enrollment.StudentRow{
			studentRow("Ada Lovelace", "ada@greenhills.cd", "Anne Lovelace", "anne@family.cd"),
			bad,
			studentRow("Grace Hopper", "grace@greenhills.cd", "Walter Hopper", "walter@family.cd"),
		},
	}

	job, err := env.svc.StartImport(ctx, sch.ID, admin.ID, imp)
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	// a bad row never fails the job
	if job.Status != enrollment.StatusCompleted {
		t.Errorf("job.Status = %s, want %s", job.Status, enrollment.StatusCompleted)
	}
	if job.SuccessfulRecords != 2 || job.FailedRecords != 1 {
		t.Errorf("job counts = (%d, %d), want (2, 1)", job.SuccessfulRecords, job.FailedRecords)
	}
	if len(job.ErrorLog) != 1 {
		t.Fatalf("len(job.ErrorLog) = %d, want 1", len(job.ErrorLog))
	}
	if job.ErrorLog[0].Row != 2 {
		t.Errorf("ErrorLog[0].Row = %d, want 2", job.ErrorLog[0].Row)
	}
	if job.ErrorLog[0].Identifier != "bad@greenhills.cd" {
		t.Errorf("ErrorLog[0].Identifier = %s, want bad@greenhills.cd", job.ErrorLog[0].Identifier)
	}
	if !strings.Contains(job.ErrorLog[0].Message, "sex") {
		t.Errorf("ErrorLog[0].Message = %q, want a sex field error", job.ErrorLog[0].Message)
	}

	progress, err := env.svc.GetProgress(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if progress.Progress != 100 {
		t.Errorf("progress.Progress = %d, want 100", progress.Progress)
	}
	if progress.EstimatedTimeRemaining != nil {
		t.Errorf("progress.EstimatedTimeRemaining = %v, want nil", progress.EstimatedTimeRemaining)
	}
}

func TestService_StartImport_allRowsFailingStillCompletes(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	sch, _, _ := testutil.CreateSchool(t, env.schoolRepo, "Green Hills")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@greenhills.cd", "S3cr3t.Pwd", user.TypeAdmin, true)

	rows := make([]enrollment.StudentRow, 3)
	for i := range rows {
		rows[i] = enrollment.StudentRow{FullName: "No Data"}
	}

	job, err := env.svc.StartImport(ctx, sch.ID, admin.ID, enrollment.NewImport{Students: rows})
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	// FAILED is reserved for pipeline errors, not data errors
	if job.Status != enrollment.StatusCompleted {
		t.Errorf("job.Status = %s, want %s", job.Status, enrollment.StatusCompleted)
	}
	if job.SuccessfulRecords != 0 || job.FailedRecords != 3 {
		t.Errorf("job counts = (%d, %d), want (0, 3)", job.SuccessfulRecords, job.FailedRecords)
	}
	if len(job.ErrorLog) != 3 {
		t.Errorf("len(job.ErrorLog) = %d, want 3", len(job.ErrorLog))
	}
}

func TestService_StartImport_validation(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	sch, _, _ := testutil.CreateSchool(t, env.schoolRepo, "Green Hills")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@greenhills.cd", "S3cr3t.Pwd", user.TypeAdmin, true)

	t.Run("empty roster", func(t *testing.T) {
		_, err := env.svc.StartImport(ctx, sch.ID, admin.ID, enrollment.NewImport{})
		if err == nil {
			t.Fatal("StartImport() error = nil, want validation error")
		}
	})

	t.Run("unknown school", func(t *testing.T) {
		imp := enrollment.NewImport{Students: []enrollment.StudentRow{
			studentRow("Ada Lovelace", "ada@greenhills.cd", "Anne Lovelace", "anne@family.cd"),
		}}
		_, err := env.svc.StartImport(ctx, "nope", admin.ID, imp)
		if _, ok := err.(*core.ValidationError); !ok {
			t.Fatalf("StartImport() error = %v, want *core.ValidationError", err)
		}
	})
}

func TestService_StartImport_noActiveLevels(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	// school without any level: every row fails placement
	sch, err := env.schoolRepo.CreateSchool(ctx, school.School{Name: "Empty School", IsActive: true})
	if err != nil {
		t.Fatalf("CreateSchool() error = %v", err)
	}
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@empty.cd", "S3cr3t.Pwd", user.TypeAdmin, true)

	imp := enrollment.NewImport{Students: []enrollment.StudentRow{
		studentRow("Ada Lovelace", "ada@empty.cd", "Anne Lovelace", "anne@family.cd"),
	}}
	job, err := env.svc.StartImport(ctx, sch.ID, admin.ID, imp)
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	if job.Status != enrollment.StatusCompleted {
		t.Errorf("job.Status = %s, want %s", job.Status, enrollment.StatusCompleted)
	}
	if job.FailedRecords != 1 {
		t.Fatalf("job.FailedRecords = %d, want 1", job.FailedRecords)
	}
	if !strings.Contains(job.ErrorLog[0].Message, "No active levels found for school") {
		t.Errorf("ErrorLog[0].Message = %q, want a no-active-levels error", job.ErrorLog[0].Message)
	}
}

// countingRepo records every progress snapshot write.
type countingRepo struct {
	enrollment.Repository
	snapshots []enrollment.ImportJob
}

func (r *countingRepo) UpdateImportJob(ctx context.Context, job enrollment.ImportJob) (enrollment.ImportJob, error) {
	r.snapshots = append(r.snapshots, job)
	return r.Repository.UpdateImportJob(ctx, job)
}

func TestService_StartImport_snapshotInterval(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	sch, _, _ := testutil.CreateSchool(t, env.schoolRepo, "Green Hills")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@greenhills.cd", "S3cr3t.Pwd", user.TypeAdmin, true)

	origInterval := core.Conf.Import.SnapshotInterval
	core.Conf.Import.SnapshotInterval = 2
	defer func() { core.Conf.Import.SnapshotInterval = origInterval }()

	repo := &countingRepo{Repository: env.repo}
	svc := enrollment.NewServiceMock(
		repo,
		env.schoolRepo,
		user.NewService(env.usrRepo),
		env.notifier,
		logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0)),
	)

	rows := make([]enrollment.StudentRow, 5)
	for i := range rows {
		rows[i] = enrollment.StudentRow{FullName: "Invalid"} // cheap rows, no accounts
	}

	job, err := svc.StartImport(ctx, sch.ID, admin.ID, enrollment.NewImport{Students: rows})
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}
	if job.Status != enrollment.StatusCompleted {
		t.Fatalf("job.Status = %s, want %s", job.Status, enrollment.StatusCompleted)
	}

	// snapshots after rows 2 and 4, then the terminal write
	if len(repo.snapshots) != 3 {
		t.Fatalf("snapshot writes = %d, want 3", len(repo.snapshots))
	}

	// counters never overshoot the total and never go backwards
	prev := 0
	for i, snap := range repo.snapshots {
		if snap.Processed() > snap.TotalRecords {
			t.Errorf("snapshot %d: processed = %d > total %d", i, snap.Processed(), snap.TotalRecords)
		}
		if snap.Processed() < prev {
			t.Errorf("snapshot %d: processed = %d, regressed below %d", i, snap.Processed(), prev)
		}
		prev = snap.Processed()
	}
	if last := repo.snapshots[len(repo.snapshots)-1]; last.Processed() != last.TotalRecords {
		t.Errorf("terminal snapshot processed = %d, want %d", last.Processed(), last.TotalRecords)
	}
}

func TestRepository_NextEnrollmentSequence(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := env.repo.NextEnrollmentSequence(ctx, "school-1", 2026)
		if err != nil {
			t.Fatalf("NextEnrollmentSequence() error = %v", err)
		}
		if got != want {
			t.Errorf("NextEnrollmentSequence() = %d, want %d", got, want)
		}
	}

	// independent per school and per year
	if got, _ := env.repo.NextEnrollmentSequence(ctx, "school-2", 2026); got != 1 {
		t.Errorf("NextEnrollmentSequence(other school) = %d, want 1", got)
	}
	if got, _ := env.repo.NextEnrollmentSequence(ctx, "school-1", 2027); got != 1 {
		t.Errorf("NextEnrollmentSequence(other year) = %d, want 1", got)
	}
}
