package echoapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/aula/apps/api/echo"
	"github.com/trezcool/aula/core/student"
	"github.com/trezcool/aula/core/task"
	"github.com/trezcool/aula/core/user"
	testutil "github.com/trezcool/aula/tests"
)

var (
	studentPIN    = student.Credentials{PIN: "1234"}
	studentImages = student.Credentials{Images: []string{"cat", "sun", "tree"}}
)

func Test_studentApi_login(t *testing.T) {
	app := setup(t)
	pupil := testutil.CreateStudent(t, app.stRepo, "Pupil", "pupil", student.LoginImages, studentImages, "", true)
	testutil.CreateStudent(t, app.stRepo, "Gone", "gone", student.LoginPIN, studentPIN, "", false)

	body := func(uname string, creds student.Credentials) []byte {
		return marshalObj(t, echoapi.StudentLoginRequest{Username: uname, Credentials: creds})
	}
	failed := marshalObj(t, httpErr{Error: "authentication failed"})

	app.run(t, []httpTest{
		{
			name: "login info", path: "/v1/students/login/PUPIL",
			wantData: marshalObj(t, student.LoginInfo{
				Username: "pupil", Name: "Pupil", LoginType: student.LoginImages, Images: student.LoginImageCatalogue,
			}),
		},
		{name: "login info (unknown)", path: "/v1/students/login/nobody", wantCode: http.StatusNotFound},
		{name: "login info (inactive)", path: "/v1/students/login/gone", wantCode: http.StatusNotFound},
		{
			name: "images out of order", method: http.MethodPost, path: "/v1/students/login",
			body: body("pupil", student.Credentials{Images: []string{"sun", "cat", "tree"}}), wantCode: http.StatusBadRequest, wantData: failed,
		},
		{
			name: "images subset", method: http.MethodPost, path: "/v1/students/login",
			body: body("pupil", student.Credentials{Images: []string{"cat", "sun"}}), wantCode: http.StatusBadRequest, wantData: failed,
		},
		{name: "unknown", method: http.MethodPost, path: "/v1/students/login", body: body("nobody", studentPIN), wantCode: http.StatusBadRequest, wantData: failed},
		{
			name: "inactive", method: http.MethodPost, path: "/v1/students/login", body: body("gone", studentPIN),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("ok", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/students/login", "", body(" Pupil ", studentImages))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[echoapi.StudentLoginResponse](t, rec)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, pupil.ID, resp.Student.ID)
		assert.False(t, resp.Student.LastLogin.IsZero())

		// the student token opens the student's own record and nothing else
		rec = app.do(http.MethodGet, "/v1/students/"+pupil.ID, resp.Token)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = app.do(http.MethodGet, "/v1/students", resp.Token)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

		rec = app.do(http.MethodPost, "/v1/students/token-refresh", resp.Token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEmpty(t, decode[echoapi.LoginResponse](t, rec).Token)
	})
}

func Test_studentApi_create(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	pupil := testutil.CreateStudent(t, app.stRepo, "Pupil", "pupil", student.LoginPIN, studentPIN, "", true)
	teacherToken := app.userToken(t, teacher)

	app.run(t, []httpTest{
		{
			name: "staff only", method: http.MethodPost, path: "/v1/students", token: app.studentToken(t, pupil),
			body:     marshalObj(t, student.NewStudent{Name: "Kid", Username: "kid", LoginType: student.LoginPIN, PIN: "1234"}),
			wantCode: http.StatusForbidden,
		},
		{
			name: "missing secret", method: http.MethodPost, path: "/v1/students", token: teacherToken,
			body:     marshalObj(t, student.NewStudent{Name: "Kid", Username: "kid", LoginType: student.LoginImages}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "username taken", method: http.MethodPost, path: "/v1/students", token: teacherToken,
			body:     marshalObj(t, student.NewStudent{Name: "Kid", Username: "PUPIL", LoginType: student.LoginPIN, PIN: "1234"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": student.ErrUsernameExists.Error()}),
		},
	})

	t.Run("ok", func(t *testing.T) {
		data := student.NewStudent{Name: " Kid ", Username: "Kid", LoginType: student.LoginImages, Images: []string{"dog", "moon"}}
		rec := app.do(http.MethodPost, "/v1/students", teacherToken, marshalObj(t, data))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		kid := decode[student.Student](t, rec)
		assert.Equal(t, "Kid", kid.Name)
		assert.Equal(t, "kid", kid.Username)
		assert.Equal(t, teacher.ID, kid.TeacherID)
		assert.True(t, kid.IsActive)

		rec = app.do(http.MethodPost, "/v1/students/login", "", marshalObj(t, echoapi.StudentLoginRequest{
			Username: "kid", Credentials: student.Credentials{Images: []string{"dog", "moon"}},
		}))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func Test_studentApi_detail(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	pupil := testutil.CreateStudent(t, app.stRepo, "Pupil", "pupil", student.LoginPIN, studentPIN, "", true)
	other := testutil.CreateStudent(t, app.stRepo, "Other", "other", student.LoginPIN, studentPIN, "", true)

	teacherToken := app.userToken(t, teacher)
	pupilToken := app.studentToken(t, pupil)
	notFound := marshalObj(t, httpErr{Error: "not found"})

	app.run(t, []httpTest{
		{name: "auth required", path: "/v1/students/" + pupil.ID, wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "self", path: "/v1/students/" + pupil.ID, token: pupilToken, wantData: marshalObj(t, pupil)},
		{name: "another student", path: "/v1/students/" + other.ID, token: pupilToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "staff", path: "/v1/students/" + other.ID, token: teacherToken, wantData: marshalObj(t, other)},
		{name: "unknown", path: "/v1/students/" + uuid.New().String(), token: teacherToken, wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "students cannot update themselves", method: http.MethodPut, path: "/v1/students/" + pupil.ID, token: pupilToken,
			body: marshalObj(t, map[string]string{"name": "Hacker"}), wantCode: http.StatusForbidden,
		},
		{name: "query", path: "/v1/students?search=oth", token: teacherToken, wantData: marshalList(t, other)},
	})

	t.Run("update switches login type", func(t *testing.T) {
		data := map[string]interface{}{"login_type": student.LoginPassword, "password": "secret1"}
		rec := app.do(http.MethodPut, "/v1/students/"+pupil.ID, teacherToken, marshalObj(t, data))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, student.LoginPassword, decode[student.Student](t, rec).LoginType)

		rec = app.do(http.MethodPost, "/v1/students/login", "", marshalObj(t, echoapi.StudentLoginRequest{
			Username: "pupil", Credentials: student.Credentials{Password: "secret1"},
		}))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/students/"+other.ID, teacherToken)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		_, err := app.stRepo.GetStudent(context.Background(), student.GetFilter{ID: other.ID})
		assert.Equal(t, student.ErrNotFound, err)
	})
}

// seedTasks gives pupil one task per source, plus a task for somebody else.
func seedTasks(t *testing.T, app *testApp, pupilID, otherID string) (game, menu, material, steps task.Task) {
	t.Helper()
	day := func(d int, h int) time.Time { return time.Date(2024, time.March, d, h, 0, 0, 0, time.UTC) }

	game = testutil.CreateTask(t, app.taskRepo, task.GameRecord{
		ID: "g1", Name: "Puzzle", StartDate: day(1, 9), EndDate: day(2, 9), StudentID: pupilID, Link: "https://games.test/puzzle",
	})
	menu = testutil.CreateTask(t, app.taskRepo, task.MenuRecord{
		ID: "m1", Title: "Lunch", DateFrom: day(1, 12), DateTo: day(1, 13), AssignedTo: pupilID, MenuIDs: []string{"soup"},
	})
	material = testutil.CreateTask(t, app.taskRepo, task.MaterialRecord{
		ID: "x1", Name: "Crayons", PickupFrom: day(2, 8), PickupTo: day(2, 8), StudentID: pupilID, MaterialIDs: []string{"c1"},
	})
	steps = testutil.CreateTask(t, app.taskRepo, task.StepsRecord{
		ID: "s1", Title: "Wash hands", StartsOn: day(3, 8), EndsOn: day(3, 8), StudentID: pupilID,
		Steps: []task.Step{{Text: "Soap"}, {Text: "Rinse"}},
	})
	testutil.CreateTask(t, app.taskRepo, task.GameRecord{
		ID: "g2", Name: "Not yours", StartDate: day(1, 9), EndDate: day(3, 9), StudentID: otherID, Link: "https://games.test/other",
	})
	return
}

func Test_studentApi_tasks(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	pupil := testutil.CreateStudent(t, app.stRepo, "Pupil", "pupil", student.LoginPIN, studentPIN, "", true)
	other := testutil.CreateStudent(t, app.stRepo, "Other", "other", student.LoginPIN, studentPIN, "", true)
	game, menu, material, steps := seedTasks(t, app, pupil.ID, other.ID)

	pupilToken := app.studentToken(t, pupil)
	base := "/v1/students/" + pupil.ID

	app.run(t, []httpTest{
		{
			name: "merged in source order", path: base + "/tasks", token: pupilToken,
			wantData: marshalObj(t, task.Result{Tasks: []task.Task{game, menu, material, steps}}),
		},
		{
			name: "staff sees them too", path: base + "/tasks", token: app.userToken(t, teacher),
			wantData: marshalObj(t, task.Result{Tasks: []task.Task{game, menu, material, steps}}),
		},
		{name: "another student's tasks", path: "/v1/students/" + other.ID + "/tasks", token: pupilToken, wantCode: http.StatusNotFound},
		{
			name: "calendar", path: base + "/calendar", token: pupilToken,
			wantData: marshalObj(t, task.CalendarResult{Days: task.DayBuckets{
				"2024-03-01": {game, menu},
				"2024-03-02": {game, material},
				"2024-03-03": {steps},
			}}),
		},
		{
			name: "calendar window", path: base + "/calendar?from=2024-03-02&to=2024-03-02", token: pupilToken,
			wantData: marshalObj(t, task.CalendarResult{Days: task.DayBuckets{"2024-03-02": {game, material}}}),
		},
		{
			name: "calendar bad day", path: base + "/calendar?from=03/02/2024", token: pupilToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"from": "must be a day formatted as 2006-01-02"}),
		},
		{
			name: "agenda", path: base + "/agenda?day=2024-03-01", token: pupilToken,
			wantData: marshalObj(t, task.AgendaResult{Day: "2024-03-01", Tasks: []task.Task{game, menu}}),
		},
		{
			name: "agenda (free day)", path: base + "/agenda?day=2024-04-01", token: pupilToken,
			wantData: marshalObj(t, task.AgendaResult{Day: "2024-04-01", Tasks: []task.Task{}}),
		},
	})

	t.Run("failing source", func(t *testing.T) {
		app.db.FailSource(task.SourceMenu, errors.New("menu service down"))
		defer app.db.FailSource(task.SourceMenu, nil)

		rec := app.do(http.MethodGet, base+"/tasks", pupilToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, string(marshalObj(t, task.Result{
			Tasks:         []task.Task{game, material, steps},
			FailedSources: []task.Source{task.SourceMenu},
		})), rec.Body.String())
	})
}

func Test_studentApi_completeTask(t *testing.T) {
	app := setup(t)
	pupil := testutil.CreateStudent(t, app.stRepo, "Pupil", "pupil", student.LoginPIN, studentPIN, "", true)
	other := testutil.CreateStudent(t, app.stRepo, "Other", "other", student.LoginPIN, studentPIN, "", true)
	_, menu, _, _ := seedTasks(t, app, pupil.ID, other.ID)

	pupilToken := app.studentToken(t, pupil)
	path := func(src, id string) string { return "/v1/students/" + pupil.ID + "/tasks/" + src + "/" + id + "/complete" }

	completed := menu
	completed.Completed = true

	app.run(t, []httpTest{
		{name: "unknown source", method: http.MethodPost, path: path("homework", "m1"), token: pupilToken, wantCode: http.StatusNotFound},
		{name: "unknown task", method: http.MethodPost, path: path("menu", "nope"), token: pupilToken, wantCode: http.StatusNotFound},
		{name: "somebody else's task", method: http.MethodPost, path: path("game", "g2"), token: pupilToken, wantCode: http.StatusNotFound},
		{name: "ok", method: http.MethodPost, path: path("menu", "m1"), token: pupilToken, wantData: marshalObj(t, completed)},
		{name: "again", method: http.MethodPost, path: path("menu", "m1"), token: pupilToken, wantData: marshalObj(t, completed)},
	})

	rec, err := app.taskRepo.GetRecord(context.Background(), task.SourceMenu, "m1")
	require.NoError(t, err)
	assert.True(t, rec.(task.MenuRecord).Done)

	// wrapped not-found errors are counted with the status they were answered with
	route := "/v1/students/:id/tasks/:source/:task/complete"
	res := httptest.NewRecorder()
	app.srv.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `aula_http_requests_total{method="POST",route="`+route+`",status="404"} 3`)
	assert.Contains(t, body, `aula_http_requests_total{method="POST",route="`+route+`",status="200"} 2`)
	assert.NotContains(t, body, `route="`+route+`",status="500"`)
}
