package enrollment

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/school"
	"github.com/ifeobi/sms-backend/core/user"
)

// processRow runs one roster row through the full provisioning chain:
// student number, parent account, student account, student profile,
// parent relationship, then the best-effort notifications. Any error
// before the outcome is recorded fails the row; writes already committed
// (e.g. a parent account) are deliberately left in place - a retried
// import reuses them.
func (svc *service) processRow(
	ctx context.Context,
	job ImportJob,
	sch school.School,
	imp NewImport,
	year int,
	row StudentRow,
) (string, error) {
	if err := row.Validate(); err != nil {
		return "", err
	}

	// 1. student number from the atomic per-school-per-year sequence
	seq, err := svc.repo.NextEnrollmentSequence(ctx, job.SchoolID, year)
	if err != nil {
		return "", errors.Wrap(err, "reserving student number")
	}
	number := studentNumber(year, seq)

	// 2. get-or-create the parent account
	parentPwd, err := generatePassword(core.Conf.Import.PasswordLength)
	if err != nil {
		return "", err
	}
	parent, parentCreated, err := svc.usrSvc.GetOrCreate(ctx, user.NewUser{
		Type:     user.TypeParent,
		Name:     row.ParentFullName,
		Email:    row.ParentEmail,
		Password: parentPwd,
	})
	if err != nil {
		return "", errors.Wrap(err, "provisioning parent account")
	}
	if parentCreated {
		svc.notifier.SendParentWelcome(ParentWelcome{
			To:         parent.Email,
			ParentName: parent.Name,
			Email:      parent.Email,
			Password:   parentPwd,
		})
	}

	// 3. create the student account
	studentPwd, err := generatePassword(core.Conf.Import.PasswordLength)
	if err != nil {
		return "", err
	}
	account, err := svc.usrSvc.Create(ctx, user.NewUser{
		Type:     user.TypeStudent,
		Name:     row.FullName,
		Email:    row.Email,
		Password: studentPwd,
	})
	if err != nil {
		return "", errors.Wrap(err, "creating student account")
	}

	// 4. student profile, defaulting level/class to the job's target or the
	// school's first active ones
	levelID, classID, err := svc.resolvePlacement(ctx, job.SchoolID, imp, row)
	if err != nil {
		return "", err
	}
	student, err := svc.repo.CreateStudent(ctx, Student{
		UserID:        account.ID,
		SchoolID:      job.SchoolID,
		StudentNumber: number,
		Sex:           row.Sex,
		DateOfBirth:   row.ParsedDateOfBirth(),
		LevelID:       levelID,
		ClassID:       classID,
		GuardianPhone: row.ParentPhone,
		CreatedAt:     nowFunc().UTC(),
	})
	if err != nil {
		return "", errors.Wrap(err, "creating student")
	}

	// 5. pending relationship carrying the verification handshake
	rel, err := svc.linkParent(ctx, parent, job.SchoolID, student.ID)
	if err != nil {
		return "", errors.Wrap(err, "linking parent")
	}

	// 6. notifications; failures here never fail the row
	svc.notifier.SendStudentWelcome(StudentWelcome{
		To:          account.Email,
		StudentName: account.Name,
		Email:       account.Email,
		Password:    studentPwd,
		SchoolName:  sch.Name,
	})
	svc.notifier.SendParentInvitation(ParentInvitation{
		To:               parent.Email,
		ParentName:       parent.Name,
		StudentName:      account.Name,
		VerificationCode: rel.VerificationCode,
	})

	return student.ID, nil
}

// resolvePlacement picks the level and class for a row: explicit row value,
// then the job default, then the school's first active one.
func (svc *service) resolvePlacement(ctx context.Context, schoolID string, imp NewImport, row StudentRow) (string, string, error) {
	levelID := row.LevelID
	if levelID == "" {
		levelID = imp.LevelID
	}
	if levelID == "" {
		lvl, err := svc.schoolRepo.FirstActiveLevel(ctx, schoolID)
		if err != nil {
			return "", "", err
		}
		levelID = lvl.ID
	}

	classID := row.ClassID
	if classID == "" {
		classID = imp.ClassID
	}
	if classID == "" {
		cls, err := svc.schoolRepo.FirstActiveClass(ctx, levelID)
		if err != nil {
			return "", "", err
		}
		classID = cls.ID
	}
	return levelID, classID, nil
}

// linkParent attaches the student to the parent's pending relationship for
// this school, creating one with a fresh verification code when none is
// pending. Siblings imported for the same parent share one invitation code.
func (svc *service) linkParent(ctx context.Context, parent user.User, schoolID, studentID string) (Relationship, error) {
	rel, err := svc.repo.GetPendingRelationshipByParent(ctx, parent.ID, schoolID)
	if err == nil {
		return svc.repo.AddRelationshipChild(ctx, rel.ID, studentID)
	}
	if errors.Cause(err) != ErrRelationshipNotFound {
		return Relationship{}, errors.Wrap(err, "finding pending relationship")
	}

	code, err := generateVerificationCode(core.Conf.Import.VerificationCodeLength)
	if err != nil {
		return Relationship{}, err
	}
	now := nowFunc().UTC()
	return svc.repo.CreateRelationship(ctx, Relationship{
		ParentID:              parent.ID,
		SchoolID:              schoolID,
		ChildIDs:              []string{studentID},
		RelationshipType:      RelationshipTypeParent,
		VerificationCode:      code,
		VerificationExpiresAt: now.Add(core.Conf.Import.VerificationCodeTTL),
		CreatedAt:             now,
	})
}
