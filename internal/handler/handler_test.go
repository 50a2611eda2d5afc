package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/careerfair-reservation/internal/middleware"
	"github.com/iliyamo/careerfair-reservation/internal/model"
	"github.com/iliyamo/careerfair-reservation/internal/utils"
)

const testSecret = "handler-secret"

type envelope struct {
	Success   bool                `json:"success"`
	Data      json.RawMessage     `json:"data"`
	Message   string              `json:"message"`
	Error     string              `json:"error"`
	Fields    map[string]string   `json:"fields"`
	Conflicts []model.Reservation `json:"conflicts"`
	Occupant  *model.Occupant     `json:"occupant"`
	Capacity  int                 `json:"capacity"`
}

// call sends one authenticated request to a handler mounted at route.
func call(t *testing.T, actor model.Actor, method, route, target, body string, h echo.HandlerFunc) (int, envelope) {
	t.Helper()
	e := echo.New()
	e.Add(method, route, h, middleware.JWTAuth(testSecret, ""))

	tok, err := utils.NewAccessToken(testSecret, "", actor, time.Minute)
	require.NoError(t, err)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

type countingPurger struct{ n int }

func (p *countingPurger) Purge(context.Context) { p.n++ }
