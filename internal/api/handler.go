// Package api exposes the credential flows and the account resources over
// HTTP with echo.
package api

import (
	"net/http"
	"strings"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/flow"
	"github.com/getkayan/warden/internal/identity"
	"github.com/getkayan/warden/internal/session"
	"github.com/labstack/echo/v4"
)

const (
	contextUser  = "user"
	contextToken = "token"
)

type Handler struct {
	registration *flow.RegistrationManager
	login        *flow.LoginManager
	recovery     *flow.RecoveryManager
	sessions     *session.Manager
}

func NewHandler(reg *flow.RegistrationManager, login *flow.LoginManager, rec *flow.RecoveryManager, sm *session.Manager) *Handler {
	return &Handler{registration: reg, login: login, recovery: rec, sessions: sm}
}

// RegisterRoutes mounts the /auth endpoints on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	auth := g.Group("/auth")
	auth.POST("/register", h.HandleRegister)
	auth.POST("/login", h.HandleLogin)
	auth.POST("/forgot-password", h.HandleForgotPassword)
	auth.POST("/forgot-password/verify", h.HandleVerifyForgotPassword)

	auth.POST("/logout", h.HandleLogout, RequireBearer)
	auth.GET("/me", h.HandleMe, h.AuthMiddleware)
}

type registerRequest struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,max=72"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyForgotPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	ResetToken  string `json:"reset_token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=72"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) HandleRegister(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.registration.Register(c.Request().Context(), flow.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *Handler) HandleLogin(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	resp, err := h.login.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if domain.Code(err) == domain.CodeUnauthorized {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) HandleLogout(c echo.Context) error {
	token, _ := c.Get(contextToken).(string)
	if err := h.login.Logout(c.Request().Context(), token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: flow.MessageLoggedOut})
}

func (h *Handler) HandleForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	msg, err := h.recovery.Initiate(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msg})
}

func (h *Handler) HandleVerifyForgotPassword(c echo.Context) error {
	var req verifyForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	msg, err := h.recovery.Reset(c.Request().Context(), req.Email, req.ResetToken, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msg})
}

func (h *Handler) HandleMe(c echo.Context) error {
	return c.JSON(http.StatusOK, CurrentUser(c).Public())
}

// AuthMiddleware admits requests carrying a valid bearer token and stores
// the resolved user on the context.
func (h *Handler) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return domain.ErrUnauthorized("Not authenticated")
		}

		user, err := h.sessions.Authenticate(c.Request().Context(), token)
		if err != nil {
			if domain.Code(err) == domain.CodeUnauthorized {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			}
			return err
		}

		c.Set(contextUser, user)
		c.Set(contextToken, token)
		return next(c)
	}
}

// RequireBearer admits requests carrying any bearer token and stores it on
// the context without validating it.
func RequireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return domain.ErrUnauthorized("Not authenticated")
		}
		c.Set(contextToken, token)
		return next(c)
	}
}

// CurrentUser returns the user set by AuthMiddleware, or nil outside it.
func CurrentUser(c echo.Context) *identity.User {
	user, _ := c.Get(contextUser).(*identity.User)
	return user
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
