package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskledger/core/internal/domain/entities"
	"github.com/taskledger/core/internal/infrastructure/config"
	"github.com/taskledger/core/internal/infrastructure/logger"
	"github.com/taskledger/core/internal/ports"
)

// Page targets for the redirect-driven flows.
const (
	loginPage     = "/public/login.html"
	indexPage     = "/protected/index.html"
	dashboardPage = "/protected/dashboard.html"
)

// AuthHandler handles registration, login and logout requests
type AuthHandler struct {
	authService ports.AuthService
	sessionCfg  config.SessionConfig
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService ports.AuthService, sessionCfg config.SessionConfig, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessionCfg:  sessionCfg,
		logger:      logger,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(c echo.Context) error {
	var req ports.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	}

	_, err := h.authService.Register(c.Request().Context(), req)
	switch {
	case errors.Is(err, entities.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	case errors.Is(err, entities.ErrDuplicateUser):
		return echo.NewHTTPError(http.StatusBadRequest, "User already exists")
	case err != nil:
		h.logger.Error("Registration failed", "error", err, "username", req.Username)
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.String(http.StatusCreated, "User registered successfully")
}

// Login handles user login
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	}

	token, err := h.authService.Login(c.Request().Context(), req)
	switch {
	case errors.Is(err, entities.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	case errors.Is(err, entities.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	case err != nil:
		h.logger.Error("Login failed", "error", err, "username", req.Username)
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	c.SetCookie(h.sessionCookie(token, int(h.sessionCfg.TTL.Seconds())))

	return c.Redirect(http.StatusFound, indexPage)
}

// Logout destroys the current session and clears the cookie
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(h.sessionCfg.CookieName); err == nil {
		if err := h.authService.Logout(c.Request().Context(), cookie.Value); err != nil {
			h.logger.Warn("Failed to destroy session", "error", err)
		}
	}

	c.SetCookie(h.sessionCookie("", -1))

	return c.Redirect(http.StatusFound, loginPage)
}

// Home redirects to the login page or the index page depending on whether
// the request carries a live session.
func (h *AuthHandler) Home(c echo.Context) error {
	cookie, err := c.Cookie(h.sessionCfg.CookieName)
	if err != nil {
		return c.Redirect(http.StatusFound, loginPage)
	}

	if _, err := h.authService.ResolveSession(c.Request().Context(), cookie.Value); err != nil {
		return c.Redirect(http.StatusFound, loginPage)
	}

	return c.Redirect(http.StatusFound, indexPage)
}

// Dashboard redirects an authenticated user to the dashboard page.
func (h *AuthHandler) Dashboard(c echo.Context) error {
	return c.Redirect(http.StatusFound, dashboardPage)
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.sessionCfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.sessionCfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	}
}

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// AddTask handles task creation for the authenticated user
func (h *TaskHandler) AddTask(c echo.Context) error {
	username := usernameFromContext(c)

	var req ports.AddTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Task is required")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Task is required")
	}

	_, err := h.taskService.AddTask(c.Request().Context(), username, req)
	switch {
	case errors.Is(err, entities.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, "Task is required")
	case errors.Is(err, entities.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	case err != nil:
		h.logger.Error("Add task failed", "error", err, "username", username)
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.Redirect(http.StatusFound, dashboardPage)
}

// ListTasks returns the authenticated user's tasks as a JSON array
func (h *TaskHandler) ListTasks(c echo.Context) error {
	username := usernameFromContext(c)

	tasks, err := h.taskService.ListTasks(c.Request().Context(), username)
	switch {
	case errors.Is(err, entities.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	case err != nil:
		h.logger.Error("List tasks failed", "error", err, "username", username)
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	if tasks == nil {
		tasks = []entities.Task{}
	}

	return c.JSON(http.StatusOK, tasks)
}

// DeleteTask removes a task by id. Missing ids still report success.
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	username := usernameFromContext(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid task id")
	}

	err = h.taskService.DeleteTask(c.Request().Context(), username, id)
	switch {
	case errors.Is(err, entities.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	case err != nil:
		h.logger.Error("Delete task failed", "error", err, "username", username, "task_id", id)
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.String(http.StatusOK, "Task deleted")
}

// usernameFromContext reads the username bound by the auth middleware.
func usernameFromContext(c echo.Context) string {
	username, _ := c.Get("user").(string)
	return username
}
