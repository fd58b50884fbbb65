package echoapi_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/aula/apps/api/echo"
	"github.com/trezcool/aula/core/user"
	emailsvc "github.com/trezcool/aula/services/email"
	testutil "github.com/trezcool/aula/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "Pa$$w0rd!", []string{user.RoleTeacher}, true)
	testutil.CreateUser(t, app.usrRepo, "N Dog", "ndog", "ndog@test.cd", "Pa$$w0rd!", nil, false)

	body := func(uname, pwd string) []byte {
		return marshalObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	failed := marshalObj(t, httpErr{Error: "authentication failed"})

	app.run(t, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login", body: body("", ""),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{name: "unknown user", method: http.MethodPost, path: "/v1/users/login", body: body("nobody", "Pa$$w0rd!"), wantCode: http.StatusBadRequest, wantData: failed},
		{name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: body("teacher", "nope"), wantCode: http.StatusBadRequest, wantData: failed},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/login", body: body("ndog", "Pa$$w0rd!"),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("by username or email", func(t *testing.T) {
		for _, uname := range []string{"Teacher", "teacher@test.cd"} {
			rec := app.do(http.MethodPost, "/v1/users/login", "", body(uname, "Pa$$w0rd!"))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[echoapi.LoginResponse](t, rec).Token)
		}

		usr, err := app.usrRepo.GetUser(context.Background(), user.GetFilter{Username: "teacher"})
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero())
	})
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)

	now := time.Now()
	usr1 := testutil.CreateUser(t, app.usrRepo, "User", "awe", "awe@test.cd", "", nil, true, now.Add(1*time.Hour))
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true, now.Add(2*time.Hour))
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true, now.Add(3*time.Hour))
	naughty := testutil.CreateUser(t, app.usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleTeacher}, false, now)
	pupil := testutil.CreateStudent(t, app.stRepo, "Pupil", "pupil", "pin", studentPIN, "", true)

	adminToken := app.userToken(t, admin)
	path := func(v url.Values) string { return "/v1/users?" + v.Encode() }

	app.run(t, []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: app.userToken(t, teacher),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "students are not staff", path: "/v1/users", token: app.studentToken(t, pupil),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "get all", path: "/v1/users", token: adminToken, wantData: marshalList(t, naughty, usr1, admin, teacher)},
		{name: "search (unknown)", path: path(url.Values{"search": {"lol"}}), token: adminToken, wantData: marshalList(t)},
		{name: "search=USE", path: path(url.Values{"search": {"USE"}}), token: adminToken, wantData: marshalList(t, usr1)},
		{
			name: "role=teacher:", path: path(url.Values{"role": {user.RoleTeacher}}), token: adminToken,
			wantData: marshalList(t, naughty, teacher),
		},
		{name: "is_active=false", path: path(url.Values{"is_active": {"false"}}), token: adminToken, wantData: marshalList(t, naughty)},
		{
			name: "order by -email", path: path(url.Values{"ordering": {"-email"}}), token: adminToken,
			wantData: marshalList(t, teacher, naughty, usr1, admin),
		},
		{
			name: "order by name", path: path(url.Values{"ordering": {"name"}}), token: adminToken,
			wantData: marshalList(t, admin, naughty, teacher, usr1),
		},
		{name: "roles", path: "/v1/users/roles", token: adminToken, wantData: marshalObj(t, user.Roles)},
	})
}

func Test_userApi_detail(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other_teacher", "other@test.cd", "", []string{user.RoleTeacher}, true)

	adminToken := app.userToken(t, admin)
	teacherToken := app.userToken(t, teacher)
	notFound := marshalObj(t, httpErr{Error: "not found"})
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})

	app.run(t, []httpTest{
		{name: "self", path: "/v1/users/" + teacher.ID, token: teacherToken, wantData: marshalObj(t, teacher)},
		{name: "someone else", path: "/v1/users/" + other.ID, token: teacherToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "admin sees everyone", path: "/v1/users/" + other.ID, token: adminToken, wantData: marshalObj(t, other)},
		{name: "unknown", path: "/v1/users/unknown", token: adminToken, wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "teacher cannot change roles", method: http.MethodPut, path: "/v1/users/" + teacher.ID, token: teacherToken,
			body: marshalObj(t, map[string]interface{}{"roles": []string{user.RoleAdmin}}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "admin cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "teacher cannot delete", method: http.MethodDelete, path: "/v1/users/" + teacher.ID, token: teacherToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
	})

	t.Run("update name", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/users/"+teacher.ID, teacherToken, marshalObj(t, map[string]string{"name": " Mr Teacher "}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Mr Teacher", decode[user.User](t, rec).Name)
	})

	t.Run("admin deletes", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/users/"+other.ID, adminToken)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		_, err := app.usrRepo.GetUser(context.Background(), user.GetFilter{ID: other.ID})
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func Test_userApi_tokenRefresh(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	naughty := testutil.CreateUser(t, app.usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleTeacher}, false)

	expired := echoapi.GetUserClaims(teacher, app.conf, time.Now().Add(-app.conf.Server.JWTRefreshExpirationDelta-time.Minute).Unix())
	expiredToken, err := echoapi.GenerateToken(expired, app.conf)
	require.NoError(t, err)

	app.run(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/users/token-refresh", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/token-refresh", token: app.userToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "refresh expired", method: http.MethodPost, path: "/v1/users/token-refresh", token: expiredToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"}),
		},
	})

	t.Run("ok", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/users/token-refresh", app.userToken(t, teacher))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEmpty(t, decode[echoapi.LoginResponse](t, rec).Token)
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "reset@test.cd", "", []string{user.RoleTeacher}, true)

	sentTo := func(email string) int {
		var n int
		for _, msg := range emailsvc.SentMessages() {
			for _, to := range msg.To {
				if to.Address == email {
					n++
				}
			}
		}
		return n
	}
	before := sentTo(teacher.Email)

	for _, email := range []string{"unknown@test.cd", teacher.Email} {
		rec := app.do(http.MethodPost, "/v1/users/password-reset", "", marshalObj(t, echoapi.PasswordResetRequest{Email: email}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, before+1, sentTo(teacher.Email))

	t.Run("confirm", func(t *testing.T) {
		token, err := user.MakeToken(teacher, app.conf)
		require.NoError(t, err)

		data := user.ResetUserPassword{
			UID:             user.EncodeUID(teacher),
			Token:           token,
			Password:        "n3w-Secr3t-pwd",
			PasswordConfirm: "n3w-Secr3t-pwd",
		}
		rec := app.do(http.MethodPost, "/v1/users/password-reset-confirm", "", marshalObj(t, data))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = app.do(http.MethodPost, "/v1/users/login", "", marshalObj(t, echoapi.LoginRequest{Username: "teacher", Password: "n3w-Secr3t-pwd"}))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}
