package api

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Config carries everything Register needs to wire the HTTP surface.
type Config struct {
	Board         Board
	Engine        Engine
	Activity      ActivityFeed
	Notifications Notifications
	Contacts      Contacts
	Broker        Broker
	// Users maps basic-auth usernames to passwords; the authenticated
	// username is the acting identity for activity and notifications.
	Users     map[string]string
	StaticDir string
	Logger    *log.Logger
}

// Register wires up all routes on the provided Echo instance. The intake
// form and health endpoints are public; everything else sits behind basic
// auth.
func Register(e *echo.Echo, cfg Config) {
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}

	e.GET("/healthz", healthz())
	e.POST("/api/contact", postContact(cfg.Engine, cfg.Contacts), middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	authn := middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm: "Mission Control",
		Validator: func(username, password string, c echo.Context) (bool, error) {
			expected, ok := cfg.Users[username]
			if !ok || subtle.ConstantTimeCompare([]byte(expected), []byte(password)) != 1 {
				return false, nil
			}
			c.Set("user", username)
			return true, nil
		},
	})

	g := e.Group("/api", authn)
	g.GET("/data", getData(cfg.Board, cfg.Logger))
	g.GET("/activity", getActivity(cfg.Activity))
	g.GET("/notifications", getNotifications(cfg.Notifications))
	g.POST("/notifications/read", postNotificationsRead(cfg.Notifications))
	g.POST("/tasks", postTask(cfg.Engine, cfg.Logger))
	g.PUT("/tasks/:id", putTask(cfg.Engine, cfg.Logger))
	g.DELETE("/tasks/:id", deleteTask(cfg.Engine, cfg.Logger))
	g.GET("/stream", streamEvents(cfg.Broker))

	if cfg.StaticDir != "" {
		ui := e.Group("", authn)
		ui.Static("/", cfg.StaticDir)
	}
}

// actorFrom returns the authenticated username set by the basic-auth
// validator. Unauthenticated callers (the intake form) pass their own actor.
func actorFrom(c echo.Context) string {
	if user, ok := c.Get("user").(string); ok && user != "" {
		return user
	}
	return "unknown"
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getData(board Board, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, "data")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		fetchStart := time.Now()
		data, fetchErr := board.SnapshotJSON(ctx)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load board"})
			return err
		}
		err = c.JSONBlob(http.StatusOK, data)
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getActivity(feed ActivityFeed) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 100
		if raw := c.QueryParam("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			}
			if n < limit {
				limit = n
			}
		}
		return c.JSON(http.StatusOK, activityResponse{Activities: feed.List(limit)})
	}
}

func getNotifications(queue Notifications) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, notificationsResponse{Notifications: queue.List()})
	}
}

func postNotificationsRead(queue Notifications) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := queue.MarkAllRead(); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to mark notifications read"})
		}
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

func decodeBody(c echo.Context, into any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, taskBodyMaxSize))
	return dec.Decode(into)
}

func postTask(engine Engine, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, spanCtx := newBoardRequestMetrics(c.Request().Context(), logger, "create")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var in domain.CreateTaskInput
		decodeStart := time.Now()
		if decodeErr := decodeBody(c, &in); decodeErr != nil {
			metrics.SetErrorStage("decode_body")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		metrics.ObserveDecode(time.Since(decodeStart))

		commitStart := time.Now()
		task, engineErr := engine.CreateTask(actorFrom(c), in)
		metrics.ObserveCommit(time.Since(commitStart))
		if engineErr != nil {
			metrics.SetErrorStage("engine")
			err = writeEngineError(c, engineErr)
			return err
		}
		err = c.JSON(http.StatusOK, task)
		return err
	}
}

func putTask(engine Engine, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, spanCtx := newBoardRequestMetrics(c.Request().Context(), logger, "update")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var patch domain.TaskPatch
		decodeStart := time.Now()
		if decodeErr := decodeBody(c, &patch); decodeErr != nil {
			metrics.SetErrorStage("decode_body")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		metrics.ObserveDecode(time.Since(decodeStart))

		commitStart := time.Now()
		task, engineErr := engine.UpdateTask(actorFrom(c), c.Param("id"), patch)
		metrics.ObserveCommit(time.Since(commitStart))
		if engineErr != nil {
			metrics.SetErrorStage("engine")
			err = writeEngineError(c, engineErr)
			return err
		}
		err = c.JSON(http.StatusOK, task)
		return err
	}
}

func deleteTask(engine Engine, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, spanCtx := newBoardRequestMetrics(c.Request().Context(), logger, "delete")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		commitStart := time.Now()
		_, engineErr := engine.DeleteTask(actorFrom(c), c.Param("id"))
		metrics.ObserveCommit(time.Since(commitStart))
		if engineErr != nil {
			metrics.SetErrorStage("engine")
			err = writeEngineError(c, engineErr)
			return err
		}
		err = c.JSON(http.StatusOK, successResponse{Success: true})
		return err
	}
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func writeEngineError(c echo.Context, err error) error {
	var (
		validationErr domain.ValidationError
		forbiddenErr  domain.ForbiddenError
	)
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Task not found"})
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: validationErr.Reason})
	case errors.As(err, &forbiddenErr):
		return c.JSON(http.StatusForbidden, errorResponse{Error: forbiddenErr.Error()})
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
