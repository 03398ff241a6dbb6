package enrollment

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/ifeobi/sms-backend/core"
)

// VerifyParent validates a parent-submitted code against a pending
// relationship and activates it. Verification is a distinct write path:
// nothing in the import pipeline ever flips a relationship to verified.
//
// Error cases are distinct here (ErrCodeInvalid, ErrCodeMismatch) so they
// stay testable; the API layer collapses them into one generic message to
// avoid leaking which case occurred.
func (svc *service) VerifyParent(ctx context.Context, email, code string) (Verification, error) {
	email = core.CleanString(email, true /* lower */)
	code = strings.ToUpper(core.CleanString(code))
	if email == "" || code == "" {
		return Verification{}, ErrCodeInvalid
	}

	now := nowFunc().UTC()
	rel, err := svc.repo.GetPendingRelationshipByCode(ctx, code, now)
	if err != nil {
		if errors.Cause(err) == ErrRelationshipNotFound {
			return Verification{}, ErrCodeInvalid
		}
		return Verification{}, errors.Wrap(err, "finding pending relationship by code")
	}

	parent, err := svc.usrSvc.GetByID(ctx, rel.ParentID)
	if err != nil {
		return Verification{}, errors.Wrap(err, "finding relationship parent")
	}
	// a leaked code must not be redeemable by the wrong party
	if parent.Email != email {
		return Verification{}, ErrCodeMismatch
	}

	rel, err = svc.repo.VerifyRelationship(ctx, rel.ID, now)
	if err != nil {
		if errors.Cause(err) == ErrRelationshipNotFound {
			// already verified in between; a code is single-use
			return Verification{}, ErrCodeInvalid
		}
		return Verification{}, errors.Wrap(err, "verifying relationship")
	}

	v := Verification{ParentID: rel.ParentID}
	if n := len(rel.ChildIDs); n > 0 {
		v.StudentID = rel.ChildIDs[n-1]
	}
	return v, nil
}
