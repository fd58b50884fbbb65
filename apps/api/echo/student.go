package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/aula/core"
	"github.com/trezcool/aula/core/student"
	"github.com/trezcool/aula/core/task"
	"github.com/trezcool/aula/core/user"
)

var errStudentNotFoundInCtx = errors.New("student object not found in echo.Context")

type studentApi struct {
	svc      student.Service
	usrSvc   user.Service
	taskSvc  task.Service
	conf     *core.Config
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *studentApi) {
	sg := g.Group("/students")

	// un-authed endpoints
	sg.GET("/login/:username", api.loginInfo)
	sg.POST("/login", api.login)

	// authed endpoints
	ag := sg.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.POST("", api.create, staffMiddleware)
	ag.GET("", api.query, staffMiddleware)
	ag.DELETE("", api.destroyMultiple, adminMiddleware())
	ag.GET("/login-images", api.loginImages, staffMiddleware)

	// detail endpoints
	dg := ag.Group("/:id", studentSelfOrStaffMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware)
	dg.DELETE("", api.destroy, staffMiddleware)

	// the student's tasks
	dg.GET("/tasks", api.tasks)
	dg.GET("/calendar", api.calendar)
	dg.GET("/agenda", api.agenda)
	dg.POST("/tasks/:source/:task/complete", api.completeTask)
}

func ctxStudent(ctx echo.Context) (student.Student, error) {
	s, ok := ctx.Get(objectContextKey).(student.Student)
	if !ok {
		return student.Student{}, errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	return s, nil
}

// Handlers

func (api *studentApi) loginInfo(ctx echo.Context) error {
	s, err := api.svc.GetByUsername(ctx.Request().Context(), ctx.Param("username"))
	if err != nil {
		return errors.Wrap(err, "finding student by username")
	}
	if !s.IsActive {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, s.LoginInfo())
}

func (api *studentApi) login(ctx echo.Context) error {
	var data StudentLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Authenticate(ctx.Request().Context(), data.Username, data.Credentials)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetStudentClaims(s, api.conf), api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, StudentLoginResponse{Token: token, Student: s})
}

func (api *studentApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.usrSvc, api.svc, api.conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *studentApi) loginImages(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, student.LoginImageCatalogue)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	// teachers own the students they register
	if data.TeacherID == "" {
		if sess, err := getSession(ctx); err == nil && sess.IsTeacher && !sess.IsAdmin {
			data.TeacherID = sess.Subject
		}
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()
	ordering := bindOrdering(ctx, studentOrderFields)

	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	s, err := ctxStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) update(ctx echo.Context) error {
	s, err := ctxStudent(ctx)
	if err != nil {
		return err
	}

	var data student.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err = data.Validate(s, api.validate, api.svc); err != nil {
		return err
	}

	s, err = api.svc.Update(ctx.Request().Context(), s.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	s, err := ctxStudent(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) tasks(ctx echo.Context) error {
	s, err := ctxStudent(ctx)
	if err != nil {
		return err
	}
	res, err := api.taskSvc.Tasks(ctx.Request().Context(), s.ID)
	if err != nil {
		return errors.Wrap(err, "fetching tasks")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) calendar(ctx echo.Context) error {
	s, err := ctxStudent(ctx)
	if err != nil {
		return err
	}
	var query CalendarRequest
	if err = ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to CalendarRequest")
	}
	if err = query.Validate(api.conf); err != nil {
		return err
	}

	res, err := api.taskSvc.Calendar(ctx.Request().Context(), s.ID, query.From, query.To)
	if err != nil {
		return errors.Wrap(err, "fetching calendar")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) agenda(ctx echo.Context) error {
	s, err := ctxStudent(ctx)
	if err != nil {
		return err
	}
	var query AgendaRequest
	if err = ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to AgendaRequest")
	}
	if err = query.Validate(api.conf); err != nil {
		return err
	}

	res, err := api.taskSvc.Agenda(ctx.Request().Context(), s.ID, query.Day)
	if err != nil {
		return errors.Wrap(err, "fetching agenda")
	}
	return ctx.JSON(http.StatusOK, res)
}

// completeTask marks one of the student's tasks as done.
// Tasks assigned to somebody else are reported as not found.
func (api *studentApi) completeTask(ctx echo.Context) error {
	s, err := ctxStudent(ctx)
	if err != nil {
		return err
	}
	src, err := task.ParseSource(ctx.Param("source"))
	if err != nil {
		return errHttpNotFound
	}

	reqCtx := ctx.Request().Context()
	t, err := api.taskSvc.Get(reqCtx, src, ctx.Param("task"))
	if err != nil {
		return errors.Wrap(err, "finding task")
	}
	if t.AssignedStudentID != s.ID {
		return errHttpNotFound
	}
	if !t.Completed {
		if err = api.taskSvc.Complete(reqCtx, src, t.ID); err != nil {
			return errors.Wrap(err, "completing task")
		}
		t.Completed = true
	}
	return ctx.JSON(http.StatusOK, t)
}

type (
	StudentLoginRequest struct {
		Username string `json:"username" validate:"required"`
		student.Credentials
	}

	StudentLoginResponse struct {
		Token   string          `json:"token"`
		Student student.Student `json:"student"`
	}

	CalendarRequest struct {
		From string `query:"from"`
		To   string `query:"to"`
	}

	AgendaRequest struct {
		Day string `query:"day"`
	}
)

func (lr *StudentLoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (cr *CalendarRequest) Validate(conf *core.Config) error {
	cr.From = core.CleanString(cr.From)
	cr.To = core.CleanString(cr.To)
	var flds []core.FieldError
	if cr.From != "" {
		if _, err := task.ParseDay(cr.From, conf.Tasks.Location); err != nil {
			flds = append(flds, core.FieldError{Field: "from", Error: errInvalidDay})
		}
	}
	if cr.To != "" {
		if _, err := task.ParseDay(cr.To, conf.Tasks.Location); err != nil {
			flds = append(flds, core.FieldError{Field: "to", Error: errInvalidDay})
		}
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (ar *AgendaRequest) Validate(conf *core.Config) error {
	ar.Day = core.CleanString(ar.Day)
	if ar.Day == "" {
		return nil
	}
	if _, err := task.ParseDay(ar.Day, conf.Tasks.Location); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "day", Error: errInvalidDay})
	}
	return nil
}

var errInvalidDay = "must be a day formatted as " + task.DayLayout
