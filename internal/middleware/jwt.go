package middleware // middleware holds the echo middleware shared by the operator API and webhook routes

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/boxoffice-sync/internal/utils"
)

// Context keys set by JWTAuth.
const (
    ctxOperator = "operator"
    ctxRole     = "role"
)

// JWTAuth validates a Bearer access token minted by utils.NewAccessToken
// and stores the operator (sub claim) and role in the echo context.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            sub, role, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(ctxOperator, sub)
            c.Set(ctxRole, role)
            return next(c)
        }
    }
}
