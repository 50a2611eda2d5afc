package handler

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/careerfair-reservation/internal/middleware"
	"github.com/iliyamo/careerfair-reservation/internal/model"
	"github.com/iliyamo/careerfair-reservation/internal/service"
)

// Options are shared by every handler group.
type Options struct {
	Log     *zap.Logger
	Timeout time.Duration
}

// base carries what every handler group needs: a logger, the request
// validator and the per-request store timeout.
type base struct {
	log      *zap.Logger
	validate *validator.Validate
	timeout  time.Duration
}

func newBase(o Options) base {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return base{log: o.Log, validate: newValidator(), timeout: o.Timeout}
}

// newValidator reports fields under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// context derives the request context bounded by the configured timeout.
func (b base) context(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), b.timeout)
}

// actor returns the caller stored by the JWT middleware.  Routes are always
// mounted behind it, so a missing actor is a wiring error.
func (b base) actor(c echo.Context) (model.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return a, nil
}

// normalizer is implemented by request bodies that accept field aliases.
type normalizer interface {
	normalize()
}

// bind decodes the body into dst and runs the struct validation rules.
func (b base) bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return &service.ValidationError{Fields: map[string]string{"body": "malformed request body"}}
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if err := b.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError converts validator failures into field-level messages.
func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &service.ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gtfield":
		return "must be after " + lowerFirst(fe.Param())
	}
	return fmt.Sprintf("failed the %q rule", fe.Tag())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// fail routes an error through respondError, except echo.HTTPError which
// echo renders itself.
func (b base) fail(c echo.Context, err error) error {
	if he, ok := err.(*echo.HTTPError); ok {
		return respondFail(c, he.Code, fmt.Sprint(he.Message), nil)
	}
	return respondError(c, b.log, err)
}
