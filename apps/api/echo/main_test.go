package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/intigym/backoffice/apps/api/echo"
	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/access"
	"github.com/intigym/backoffice/core/dashboard"
	"github.com/intigym/backoffice/core/member"
	"github.com/intigym/backoffice/core/payment"
	"github.com/intigym/backoffice/core/plan"
	"github.com/intigym/backoffice/core/user"
	cachesvc "github.com/intigym/backoffice/services/cache"
	emailsvc "github.com/intigym/backoffice/services/email"
	logsvc "github.com/intigym/backoffice/services/logger"
	metricsvc "github.com/intigym/backoffice/services/metrics"
	qrsvc "github.com/intigym/backoffice/services/qrcode"
	storagesvc "github.com/intigym/backoffice/services/storage"
	sqlxrepos "github.com/intigym/backoffice/storage/database/sqlx"
	"github.com/intigym/backoffice/testutil"
)

const testPassword = "Sup3r$ecreto"

type fixture struct {
	conf       *core.Config
	app        Server
	db         *sqlx.DB
	usrRepo    user.Repository
	memberRepo member.Repository
	memberSvc  member.Service
	mailSvc    *emailsvc.ConsoleServiceMock
	metrics    *metricsvc.Metrics
	qr         core.QRCodec

	admin      user.User
	staff      user.User
	adminToken string
	staffToken string
}

func setup(t *testing.T, tweak ...func(conf *core.Config)) *fixture {
	conf := core.NewTestConfig()
	conf.Storage.MediaDir = t.TempDir()
	for _, fn := range tweak {
		fn(conf)
	}
	logger := logsvc.NewNopLogger()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	f := &fixture{
		conf:       conf,
		db:         db,
		usrRepo:    sqlxrepos.NewUserRepository(db),
		memberRepo: sqlxrepos.NewMemberRepository(db),
		mailSvc:    emailsvc.NewConsoleServiceMock(conf, logger),
		metrics:    metricsvc.New(),
		qr:         qrsvc.NewCodec(),
	}

	// set up services
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	storage, err := storagesvc.NewLocalStorage(conf)
	require.NoError(t, err)

	usrSvc := user.NewService(conf, f.usrRepo, f.mailSvc)
	planSvc := plan.NewService(conf, db, sqlxrepos.NewSettingRepository(db), cachesvc.NewMemoryCache(), logger)
	paymentSvc := payment.NewService(conf, sqlxrepos.NewPaymentRepository(db), nil)
	f.memberSvc = member.NewService(conf, member.Deps{
		DB:       db,
		Repo:     f.memberRepo,
		Payments: paymentSvc,
		Plans:    planSvc,
		Storage:  storage,
		QR:       f.qr,
		MailSvc:  f.mailSvc,
		Validate: validate,
		Logger:   logger,
	})
	paymentSvc.SetMembers(f.memberSvc)
	accessSvc := access.NewService(conf, f.memberSvc, sqlxrepos.NewAccessLogRepository(db), f.qr, f.metrics, logger)

	// set up server
	f.app = NewServer(&Options{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		Metrics:      f.metrics,
		UserSvc:      usrSvc,
		MemberSvc:    f.memberSvc,
		AccessSvc:    accessSvc,
		PaymentSvc:   paymentSvc,
		PlanSvc:      planSvc,
		DashboardSvc: dashboard.NewService(conf, f.memberSvc, planSvc),
	})

	f.admin = testutil.CreateUser(t, f.usrRepo, "Dueña", "duena@intigym.pe", testPassword, []string{user.RoleAdminOwner}, true)
	f.staff = testutil.CreateUser(t, f.usrRepo, "Recepción", "recepcion@intigym.pe", testPassword, []string{user.RoleStaff}, true)
	f.adminToken = getToken(t, conf, f.admin)
	f.staffToken = getToken(t, conf, f.staff)
	return f
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
	return req, httptest.NewRecorder()
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newMultipartRequest sends fields and one file under fileField.
func newMultipartRequest(t *testing.T, method, path, token string, fields map[string]string, fileField, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = io.Copy(fw, bytes.NewReader(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
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
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
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

func runHTTPTests(t *testing.T, app Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
