package main

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"rentflow/apperr"
	"rentflow/query"
)

// envelope wraps every successful response.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Meta    *query.Meta `json:"meta,omitempty"`
	Data    any         `json:"data"`
}

func respond(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, envelope{Success: true, Message: message, Data: data})
}

func respondList(c echo.Context, code int, message string, data any, meta query.Meta) error {
	return c.JSON(code, envelope{Success: true, Message: message, Meta: &meta, Data: data})
}

var validate = newValidator()

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

// pathID reads a uuid path parameter. Malformed ids name no record, so they
// are reported the same way as missing ones.
func pathID(c echo.Context, param, entity string) (string, error) {
	id := c.Param(param)
	if _, err := uuid.Parse(id); err != nil {
		return "", apperr.NotFound("%s not found!", entity)
	}
	return id, nil
}

// bind decodes the request body into dst and validates it.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.BadRequest("Invalid request body!")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.BadRequest("%s", err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed rule '%s=%s'", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed rule '%s'", fe.Field(), fe.Tag()))
	}
	return apperr.BadRequest("Validation error: %s", strings.Join(msgs, "; "))
}
