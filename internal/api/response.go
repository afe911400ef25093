package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/acdb/stockroom/internal/model"
)

var validate = newValidator()

// statusClientClosedRequest is the nginx convention for a request the client
// abandoned before the response was ready.
const statusClientClosedRequest = 499

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// ledgerError writes err with the status matching its kind.
func ledgerError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	jsonError(w, status, model.Message(err))
}

func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindAlreadyScrapped, model.KindAlreadyApplying, model.KindNotHeld,
		model.KindInvalidTransition, model.KindConflict, model.KindIDCollision:
		return http.StatusConflict
	case model.KindPermissionDenied:
		return http.StatusForbidden
	case model.KindInvalidInput:
		return http.StatusBadRequest
	case model.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case model.KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a JSON request body into target and validates it.
// An empty body is accepted and validated as the zero value.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(target); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return errors.New("invalid request body")
	}
	f := fields[0]
	switch f.Tag() {
	case "required":
		return fmt.Errorf("%s is required", f.Field())
	case "max", "lte":
		return fmt.Errorf("%s must be at most %s", f.Field(), f.Param())
	case "min", "gte", "gt":
		return fmt.Errorf("%s is too small", f.Field())
	case "ltefield":
		return fmt.Errorf("%s must not exceed %s", f.Field(), strings.ToLower(f.Param()))
	default:
		return fmt.Errorf("%s is invalid", f.Field())
	}
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
