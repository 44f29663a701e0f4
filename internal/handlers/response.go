package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"school_portal_echo/internal/middleware"
	"school_portal_echo/internal/payments"
)

// Response is the envelope every JSON endpoint answers with
type Response struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, Response{Status: code < http.StatusBadRequest, Message: message, Data: data})
}

func fail(c echo.Context, code int, message string) error {
	return c.JSON(code, Response{Status: false, Message: message})
}

// RequestValidator adapts go-playground/validator to echo.Validator
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request: "+err.Error())
	}
	return nil
}

// actorFromContext attributes writes to the signed in staff member
func actorFromContext(c echo.Context) payments.Actor {
	user := middleware.CurrentUser(c)
	if user == nil {
		return payments.Actor{ID: "anonymous", Name: "Unknown", Role: "unknown"}
	}
	name := user.Name
	if name == "" {
		name = user.Email
	}
	return payments.Actor{ID: user.FirebaseUID, Name: name, Role: string(user.Role)}
}
