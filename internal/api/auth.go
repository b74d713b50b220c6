package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// SignInRequest is the body of POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) identityService() (IdentityService, error) {
	if s.deps.Identity == nil {
		return nil, errServiceUnavailable
	}
	return s.deps.Identity, nil
}

func (s *Server) signUp(c echo.Context) error {
	svc, err := s.identityService()
	if err != nil {
		return err
	}
	var req SignUpRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	u, err := svc.SignUp(c.Request().Context(), req.Email, req.Password, req.Username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) signIn(c echo.Context) error {
	svc, err := s.identityService()
	if err != nil {
		return err
	}
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	u, err := svc.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) signOut(c echo.Context) error {
	svc, err := s.identityService()
	if err != nil {
		return err
	}
	if err := svc.SignOut(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) me(c echo.Context) error {
	svc, err := s.identityService()
	if err != nil {
		return err
	}
	u, ok, err := svc.CurrentUser(c.Request().Context())
	if err != nil {
		return err
	}
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) listUsers(c echo.Context) error {
	svc, err := s.identityService()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, svc.AllUsers(c.Request().Context()))
}

func (s *Server) getUser(c echo.Context) error {
	svc, err := s.identityService()
	if err != nil {
		return err
	}
	u, ok := svc.UserByID(c.Request().Context(), c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}
