package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// Context keys set by JWTAuth.
const (
	ctxActor  = "actor"
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates an HS256 Bearer access
// token and stores the caller as a model.Actor in the request context.  The
// "sub" claim carries the participant id and may be a number or a numeric
// string; the "role" claim is student, company or organizer.  Tokens are
// issued by the external auth service; this server only verifies them.
// An empty secret panics.
func JWTAuth(secret, issuer string) echo.MiddlewareFunc {
	if secret == "" {
		panic("empty secret passed to JWTAuth")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	key := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims := jwt.MapClaims{}
			tok, err := parser.ParseWithClaims(raw, claims, key)
			if err != nil || !tok.Valid {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return unauthorized(c, "token has expired")
				}
				return unauthorized(c, "invalid token")
			}

			role, _ := claims["role"].(string)
			id, err := subjectID(claims["sub"])
			if err != nil && !isOrganizerRole(role) {
				return unauthorized(c, "invalid subject claim")
			}
			actor, err := model.ActorFromRole(role, id)
			if err != nil {
				return unauthorized(c, "invalid role claim")
			}

			c.Set(ctxActor, actor)
			c.Set(ctxUserID, strconv.FormatInt(id, 10))
			c.Set(ctxRole, actor.Kind.String())
			return next(c)
		}
	}
}

// ActorFrom returns the caller stored by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get(ctxActor).(model.Actor)
	return a, ok
}

// subjectID accepts the numeric forms a JSON "sub" claim can take.
func subjectID(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	case nil:
		return 0, errors.New("missing subject")
	}
	return 0, fmt.Errorf("unsupported subject type %T", v)
}

func isOrganizerRole(role string) bool {
	r := strings.ToLower(strings.TrimSpace(role))
	return r == "organizer" || r == "admin"
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": msg})
}
