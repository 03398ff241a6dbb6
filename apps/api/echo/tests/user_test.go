package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifeobi/sms-backend/core/user"
	"github.com/ifeobi/sms-backend/tests"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	testutil.CreateUser(t, env.usrRepo, "Admin", "admin@school.cd", "S3cr3t.Pwd", user.TypeAdmin, true)
	testutil.CreateUser(t, env.usrRepo, "Gone Admin", "gone@school.cd", "S3cr3t.Pwd", user.TypeAdmin, false)

	tests := []httpTest{
		{
			name:     "empty body",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "this field is required", "password": "this field is required"}`),
		},
		{
			name:     "unknown email",
			body:     []byte(`{"email": "who@school.cd", "password": "S3cr3t.Pwd"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     []byte(`{"email": "admin@school.cd", "password": "wrong.Pwd1"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     []byte(`{"email": "gone@school.cd", "password": "S3cr3t.Pwd"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name:     "ok",
			body:     []byte(`{"email": "Admin@School.CD", "password": "S3cr3t.Pwd"}`),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), "token")
		})
	}
}

func Test_userApi_retrieveSelf(t *testing.T) {
	env := setup(t)

	usr := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@school.cd", "S3cr3t.Pwd", user.TypeAdmin, true)

	t.Run("no token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/users/me")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		}, rec)
	})

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", getToken(t, usr))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, usr),
		}, rec)
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)

	usr := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@school.cd", "S3cr3t.Pwd", user.TypeAdmin, true)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", getToken(t, usr))
	env.app.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "token")
}
