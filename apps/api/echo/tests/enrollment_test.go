package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifeobi/sms-backend/core/enrollment"
	"github.com/ifeobi/sms-backend/core/user"
	"github.com/ifeobi/sms-backend/tests"
)

const genericVerifyError = "Verification failed. The code is invalid, has expired, or does not match this email address."

func rosterBody(t *testing.T, rows ...enrollment.StudentRow) []byte {
	t.Helper()
	return marchallObj(t, enrollment.NewImport{Students: rows, AcademicYear: 2026})
}

func sampleRow(name, email, parentName, parentEmail string) enrollment.StudentRow {
	return enrollment.StudentRow{
		FullName:       name,
		Sex:            "MALE",
		DateOfBirth:    "2015-06-01",
		Email:          email,
		ParentFullName: parentName,
		ParentEmail:    parentEmail,
	}
}

func Test_enrollmentApi_startImport(t *testing.T) {
	env := setup(t)

	sch, _, _ := testutil.CreateSchool(t, env.schoolRepo, "Green Hills")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@school.cd", "S3cr3t.Pwd", user.TypeAdmin, true)
	parent := testutil.CreateUser(t, env.usrRepo, "Parent", "parent@school.cd", "S3cr3t.Pwd", user.TypeParent, true)

	path := fmt.Sprintf("/v1/schools/%s/imports", sch.ID)
	body := rosterBody(t, sampleRow("Ada Lovelace", "ada@school.cd", "Anne Lovelace", "anne@family.cd"))

	t.Run("no token", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, path, body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		}, rec)
	})

	t.Run("not admin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, parent), body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	t.Run("unknown school", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/schools/nope/imports", getToken(t, admin), body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("empty roster", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, admin), []byte(`{"students": []}`))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("accepted", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, admin), body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

		var job enrollment.ImportJob
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		assert.Equal(t, sch.ID, job.SchoolID)
		assert.Equal(t, admin.ID, job.ImportedBy)
		assert.Equal(t, 1, job.TotalRecords)
	})
}

func Test_enrollmentApi_progressAndList(t *testing.T) {
	env := setup(t)

	sch, _, _ := testutil.CreateSchool(t, env.schoolRepo, "Green Hills")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@school.cd", "S3cr3t.Pwd", user.TypeAdmin, true)
	token := getToken(t, admin)

	body := rosterBody(t,
		sampleRow("Ada Lovelace", "ada@school.cd", "Anne Lovelace", "anne@family.cd"),
		sampleRow("Grace Hopper", "grace@school.cd", "Walter Hopper", "walter@family.cd"),
	)
	req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/schools/%s/imports", sch.ID), token, body)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var job enrollment.ImportJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	t.Run("progress", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/imports/%s/progress", job.ID), token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var progress enrollment.Progress
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
		assert.Equal(t, enrollment.StatusCompleted, progress.Status)
		assert.Equal(t, 100, progress.Progress)
		assert.Equal(t, 2, progress.SuccessfulRecords)
	})

	t.Run("progress of unknown job", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/imports/nope/progress", token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		}, rec)
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/schools/%s/imports", sch.ID), token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var jobs []enrollment.ImportJob
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
		require.Len(t, jobs, 1)
		assert.Equal(t, job.ID, jobs[0].ID)
	})

	t.Run("list of other school is empty", func(t *testing.T) {
		otherSch, _, _ := testutil.CreateSchool(t, env.schoolRepo, "Other School")
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/schools/%s/imports", otherSch.ID), token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		}, rec)
	})
}

func Test_enrollmentApi_verifyParent(t *testing.T) {
	env := setup(t)

	sch, _, _ := testutil.CreateSchool(t, env.schoolRepo, "Green Hills")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@school.cd", "S3cr3t.Pwd", user.TypeAdmin, true)

	body := rosterBody(t, sampleRow("Ada Lovelace", "ada@school.cd", "Anne Lovelace", "anne@family.cd"))
	req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/schools/%s/imports", sch.ID), getToken(t, admin), body)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, env.notifier.ParentInvitations, 1)

	code := env.notifier.ParentInvitations[0].VerificationCode
	verifyBody := func(email, code string) []byte {
		return marchallObj(t, map[string]string{"email": email, "code": code})
	}

	t.Run("bad code", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/parents/verify", verifyBody("anne@family.cd", "ZZZZZZ"))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: genericVerifyError}),
		}, rec)
	})

	t.Run("wrong email", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/parents/verify", verifyBody("stranger@family.cd", code))
		env.app.ServeHTTP(rec, req)
		// indistinguishable from a bad code on purpose
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: genericVerifyError}),
		}, rec)
	})

	t.Run("ok", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/parents/verify", verifyBody("anne@family.cd", code))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var v enrollment.Verification
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		assert.NotEmpty(t, v.ParentID)
		assert.NotEmpty(t, v.StudentID)
	})

	t.Run("code is single-use", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/parents/verify", verifyBody("anne@family.cd", code))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: genericVerifyError}),
		}, rec)
	})
}
