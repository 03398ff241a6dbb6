package tests

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	. "github.com/ifeobi/sms-backend/apps/api/echo"
	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/enrollment"
	"github.com/ifeobi/sms-backend/core/school"
	"github.com/ifeobi/sms-backend/core/user"
	logsvc "github.com/ifeobi/sms-backend/services/logger"
	dummydb "github.com/ifeobi/sms-backend/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app Server

	usrRepo    user.Repository
	schoolRepo school.Repository
	enrRepo    enrollment.Repository
	notifier   *enrollment.NotifierMock
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	// predictable error payloads
	core.Conf.Debug = false
	core.Conf.TestMode = true

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	env := &testEnv{
		usrRepo:    dummydb.NewUserRepository(db),
		schoolRepo: dummydb.NewSchoolRepository(db),
		enrRepo:    dummydb.NewEnrollmentRepository(db),
		notifier:   new(enrollment.NotifierMock),
	}

	logger := logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
	usrSvc := user.NewService(env.usrRepo)
	enrSvc := enrollment.NewServiceMock(env.enrRepo, env.schoolRepo, usrSvc, env.notifier, logger)

	env.app = NewServer(
		&Options{
			DisableReqLogs: true,
			UserSvc:        usrSvc,
			EnrollmentSvc:  enrSvc,
			Logger:         logger,
		},
	)
	return env
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
