package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"taskmate/internal/auth"
	"taskmate/internal/service"
	"taskmate/internal/tasks"
)

func (s *Server) getState(c echo.Context) error {
	return c.JSON(http.StatusOK, toStateJSON(s.tasks.Snapshot()))
}

func (s *Server) getTasks(c echo.Context) error {
	if err := s.requireOwner(c); err != nil {
		return err
	}
	filter := s.tasks.Filter()
	if name := c.QueryParam("filter"); name != "" {
		f, err := service.ParseFilter(name)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		filter = f
	}
	return c.JSON(http.StatusOK, tasksResponse{
		Filter: string(filter),
		Tasks:  toTaskJSON(service.FilteredView(s.tasks.Tasks(), filter)),
	})
}

func (s *Server) addTask(c echo.Context) error {
	if err := s.requireOwner(c); err != nil {
		return err
	}
	var req addTaskRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "title required"})
	}
	var due *time.Time
	if req.DueDate != "" {
		d, err := service.ParseDueDate(req.DueDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		due = &d
	}

	if err := s.tasks.AddTask(c.Request().Context(), title, due); err != nil {
		return s.failure(c, err)
	}
	return c.JSON(http.StatusCreated, toStateJSON(s.tasks.Snapshot()))
}

func (s *Server) toggleTask(c echo.Context) error {
	if err := s.requireOwner(c); err != nil {
		return err
	}
	var req toggleRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Completed == nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "completed required"})
	}

	if err := s.tasks.ToggleStatus(c.Request().Context(), c.Param("id"), *req.Completed); err != nil {
		return s.failure(c, err)
	}
	return c.JSON(http.StatusOK, toStateJSON(s.tasks.Snapshot()))
}

func (s *Server) removeTask(c echo.Context) error {
	if err := s.requireOwner(c); err != nil {
		return err
	}
	if err := s.tasks.RemoveTask(c.Request().Context(), c.Param("id")); err != nil {
		return s.failure(c, err)
	}
	return c.JSON(http.StatusOK, toStateJSON(s.tasks.Snapshot()))
}

func (s *Server) refresh(c echo.Context) error {
	if err := s.requireOwner(c); err != nil {
		return err
	}
	if err := s.tasks.Refresh(c.Request().Context()); err != nil {
		return s.failure(c, err)
	}
	return c.JSON(http.StatusOK, toStateJSON(s.tasks.Snapshot()))
}

func (s *Server) setFilter(c echo.Context) error {
	var req filterRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	f, err := service.ParseFilter(req.Filter)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	s.tasks.SetFilter(f)
	return c.JSON(http.StatusOK, toStateJSON(s.tasks.Snapshot()))
}

func (s *Server) signIn(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}
	if _, err := s.session.SignIn(c.Request().Context(), req.Email, req.Password); err != nil {
		return s.failure(c, err)
	}
	return c.JSON(http.StatusOK, toStateJSON(s.tasks.Snapshot()))
}

func (s *Server) signUp(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}
	if _, err := s.session.SignUp(c.Request().Context(), req.Email, req.Password); err != nil {
		return s.failure(c, err)
	}
	return c.JSON(http.StatusCreated, toStateJSON(s.tasks.Snapshot()))
}

func (s *Server) signOut(c echo.Context) error {
	if err := s.session.SignOut(); err != nil {
		s.log.WithError(err).Warn("sign out failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, toStateJSON(s.tasks.Snapshot()))
}

func bindCredentials(c echo.Context) (credentialsRequest, error) {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return req, err
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "email and password required")
	}
	return req, nil
}

// requireOwner answers 401 when nobody is signed in.
func (s *Server) requireOwner(c echo.Context) error {
	if s.tasks.Owner() != "" {
		return nil
	}
	return echo.NewHTTPError(http.StatusUnauthorized, tasks.ErrSignedOut.Error())
}

// failure maps a manager or session error to a JSON error response.
func (s *Server) failure(c echo.Context, err error) error {
	return c.JSON(statusFor(err), errorResponse{Error: service.Message(err, "request failed")})
}

// statusClientClosedRequest is nginx's status for a request the client
// abandoned.
const statusClientClosedRequest = 499

func statusFor(err error) int {
	switch {
	case errors.Is(err, tasks.ErrSignedOut),
		errors.Is(err, auth.ErrNotSignedIn),
		errors.Is(err, auth.ErrSessionExpired),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, tasks.ErrOwnerChanged):
		return http.StatusConflict
	}
	switch service.KindOf(err) {
	case service.KindPermission:
		return http.StatusUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindTimeout:
		return http.StatusGatewayTimeout
	case service.KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusBadGateway
	}
}
