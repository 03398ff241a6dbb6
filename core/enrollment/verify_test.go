package enrollment_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ifeobi/sms-backend/core/enrollment"
	"github.com/ifeobi/sms-backend/core/user"
	"github.com/ifeobi/sms-backend/tests"
)

func importRoster(t *testing.T, env *testEnv) (schoolID string) {
	t.Helper()
	ctx := context.Background()

	sch, _, _ := testutil.CreateSchool(t, env.schoolRepo, "Green Hills")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@greenhills.cd", "S3cr3t.Pwd", user.TypeAdmin, true)

	imp := enrollment.NewImport{
		AcademicYear: 2026,
		Students: []enrollment.StudentRow{
			studentRow("Ada Lovelace", "ada@greenhills.cd", "Anne Lovelace", "anne@family.cd"),
			studentRow("Grace Hopper", "grace@greenhills.cd", "Walter Hopper", "walter@family.cd"),
		},
	}
	job, err := env.svc.StartImport(ctx, sch.ID, admin.ID, imp)
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}
	if job.Status != enrollment.StatusCompleted || job.SuccessfulRecords != 2 {
		t.Fatalf("import did not settle: %+v", job)
	}
	return sch.ID
}

func invitationCode(t *testing.T, env *testEnv, parentEmail string) string {
	t.Helper()
	for _, inv := range env.notifier.ParentInvitations {
		if inv.To == parentEmail {
			return inv.VerificationCode
		}
	}
	t.Fatalf("no invitation sent to %s", parentEmail)
	return ""
}

func TestService_VerifyParent(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	importRoster(t, env)

	code := invitationCode(t, env, "anne@family.cd")

	// input is normalized: mixed case email, lowercase code
	v, err := env.svc.VerifyParent(ctx, " Anne@Family.CD ", strings.ToLower(code))
	if err != nil {
		t.Fatalf("VerifyParent() error = %v", err)
	}
	if v.ParentID == "" || v.StudentID == "" {
		t.Errorf("VerifyParent() = %+v, want parent and student IDs", v)
	}

	anne, err := env.usrRepo.GetUserByEmailAndType(ctx, "anne@family.cd", user.TypeParent)
	if err != nil {
		t.Fatalf("GetUserByEmailAndType() error = %v", err)
	}
	if v.ParentID != anne.ID {
		t.Errorf("VerifyParent().ParentID = %s, want %s", v.ParentID, anne.ID)
	}

	// a code is single-use
	if _, err = env.svc.VerifyParent(ctx, "anne@family.cd", code); err != enrollment.ErrCodeInvalid {
		t.Errorf("VerifyParent(spent code) error = %v, want %v", err, enrollment.ErrCodeInvalid)
	}
}

func TestService_VerifyParent_failures(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	schoolID := importRoster(t, env)

	code := invitationCode(t, env, "anne@family.cd")

	tests := []struct {
		name    string
		email   string
		code    string
		wantErr error
	}{
		{name: "unknown code", email: "anne@family.cd", code: "ZZZZZZ", wantErr: enrollment.ErrCodeInvalid},
		{name: "empty code", email: "anne@family.cd", code: "", wantErr: enrollment.ErrCodeInvalid},
		{name: "another parent's code", email: "walter@family.cd", code: code, wantErr: enrollment.ErrCodeMismatch},
		{name: "unknown email", email: "stranger@family.cd", code: code, wantErr: enrollment.ErrCodeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.VerifyParent(ctx, tt.email, tt.code); err != tt.wantErr {
				t.Errorf("VerifyParent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("expired code", func(t *testing.T) {
		parent := testutil.CreateUser(t, env.usrRepo, "Late Parent", "late@family.cd", "S3cr3t.Pwd", user.TypeParent, true)
		_, err := env.repo.CreateRelationship(ctx, enrollment.Relationship{
			ParentID:              parent.ID,
			SchoolID:              schoolID,
			ChildIDs:              []string{"some-student"},
			RelationshipType:      enrollment.RelationshipTypeParent,
			VerificationCode:      "EXPIRD",
			VerificationExpiresAt: time.Now().UTC().Add(-time.Hour),
			CreatedAt:             time.Now().UTC().Add(-49 * time.Hour),
		})
		if err != nil {
			t.Fatalf("CreateRelationship() error = %v", err)
		}

		if _, err = env.svc.VerifyParent(ctx, "late@family.cd", "EXPIRD"); err != enrollment.ErrCodeInvalid {
			t.Errorf("VerifyParent(expired code) error = %v, want %v", err, enrollment.ErrCodeInvalid)
		}
	})
}
