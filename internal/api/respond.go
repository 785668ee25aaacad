package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/group"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into dst and runs its validation tags.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", ucp.ErrInvalidRequest)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", ucp.ErrInvalidRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	fe := errs[0]
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "email":
		return path + " must be an email address"
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", path, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s cannot exceed %s", path, fe.Param())
	case "url":
		return path + " must be a URL"
	default:
		return fmt.Sprintf("%s failed validation: %s", path, fe.Tag())
	}
}

// classify maps an error to an HTTP status and a stable kind string.
func classify(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}
	var perr *ucp.ProtocolError
	switch {
	case errors.Is(err, ucp.ErrInvalidRequest), errors.Is(err, ucp.ErrInvalidInput), errors.Is(err, group.ErrInvalidGroup):
		body.Kind = "invalid_request"
		return http.StatusBadRequest, body
	case errors.Is(err, group.ErrNotFound), errors.Is(err, group.ErrMemberMissing):
		body.Kind = "not_found"
		return http.StatusNotFound, body
	case errors.Is(err, ucp.ErrUnconfigured):
		body.Kind = "configuration"
		return http.StatusServiceUnavailable, body
	case errors.Is(err, ucp.ErrAuth):
		body.Kind = "auth"
		return http.StatusBadGateway, body
	case errors.Is(err, ucp.ErrRemoteUnavailable):
		body.Kind = "unavailable"
		return http.StatusGatewayTimeout, body
	case errors.As(err, &perr):
		body.Kind = "rejected"
		if perr.AccessDisabled {
			body.Kind = "access_disabled"
		}
		body.Code, body.Detail = perr.Code, perr.RawDetail
		return http.StatusUnprocessableEntity, body
	default:
		body.Kind = "internal"
		body.Error = "internal error"
		return http.StatusInternalServerError, body
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	writeJSON(w, status, body)
}
