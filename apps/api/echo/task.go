package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/aula/core"
	"github.com/trezcool/aula/core/task"
)

type taskApi struct {
	svc      task.Service
	validate *validator.Validate
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *taskApi) {
	tg := g.Group("/tasks", jwt, staffMiddleware)
	tg.GET("/sources", api.querySources)

	sg := tg.Group("/:source", sourceMiddleware)
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.DELETE("", api.destroyMultiple)
	sg.GET("/:task", api.retrieve)
	sg.DELETE("/:task", api.destroy)
}

const sourceContextKey = "source"

// sourceMiddleware resolves the `source` param, answering 404 for unknown sources.
func sourceMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		src, err := task.ParseSource(ctx.Param("source"))
		if err != nil {
			return errHttpNotFound
		}
		ctx.Set(sourceContextKey, src)
		return next(ctx)
	}
}

func ctxSource(ctx echo.Context) task.Source {
	src, _ := ctx.Get(sourceContextKey).(task.Source)
	return src
}

// Handlers

func (api *taskApi) querySources(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, task.Sources)
}

func (api *taskApi) create(ctx echo.Context) error {
	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	data.Source = ctxSource(ctx)
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) query(ctx echo.Context) error {
	var filter TaskQueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []task.Task{})
	}
	filter.StudentID = core.CleanString(filter.StudentID)

	tasks, err := api.svc.Query(ctx.Request().Context(), ctxSource(ctx), filter.StudentID)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.Get(ctx.Request().Context(), ctxSource(ctx), ctx.Param("task"))
	if err != nil {
		return errors.Wrap(err, "finding task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	src := ctxSource(ctx)
	reqCtx := ctx.Request().Context()
	if _, err := api.svc.Get(reqCtx, src, ctx.Param("task")); err != nil {
		return errors.Wrap(err, "finding task")
	}
	if err := api.svc.Delete(reqCtx, src, ctx.Param("task")); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *taskApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(ctx.Request().Context(), ctxSource(ctx), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting tasks")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type TaskQueryFilter struct {
	StudentID string `query:"student"`
}
