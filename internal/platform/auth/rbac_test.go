package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWithRoles(e *echo.Echo, roles []string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, roles)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestRequireRoleAllows(t *testing.T) {
	e := echo.New()
	called := false
	h := RequireRole(RoleCurator)(func(c echo.Context) error {
		called = true
		return nil
	})

	if err := h(requestWithRoles(e, []string{RoleCurator})); err != nil {
		t.Fatalf("curator should pass: %v", err)
	}
	if !called {
		t.Fatal("handler not invoked")
	}
}

func TestRequireRoleAdminOverride(t *testing.T) {
	e := echo.New()
	h := RequireRole(RoleCurator)(func(c echo.Context) error { return nil })
	if err := h(requestWithRoles(e, []string{RoleAdmin})); err != nil {
		t.Fatalf("admin should pass any role check: %v", err)
	}
}

func TestRequireRoleForbids(t *testing.T) {
	e := echo.New()
	h := RequireRole(RoleCurator)(func(c echo.Context) error { return nil })
	err := h(requestWithRoles(e, []string{RoleDoctor}))
	if err == nil {
		t.Fatal("doctor should not pass curator check")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}
