package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/soaringjerry/stsportal/internal/services"
	"github.com/soaringjerry/stsportal/internal/utils"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &services.ServiceError{Code: services.ErrorInvalid, Message: utils.T(utils.MsgBadRequest), Err: err}
	}
	return check(dst)
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return &services.ServiceError{Code: services.ErrorInvalid, Message: utils.T(utils.MsgBadRequest), Err: err}
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field())
	}
	return &services.ServiceError{
		Code:    services.ErrorInvalid,
		Message: "invalid or missing: " + strings.Join(fields, ", "),
		Missing: fields,
	}
}

var statusByCode = map[services.ErrorCode]int{
	services.ErrorInvalid:          http.StatusBadRequest,
	services.ErrorIncomplete:       http.StatusBadRequest,
	services.ErrorAggregationInput: http.StatusBadRequest,
	services.ErrorInvalidCode:      http.StatusNotFound,
	services.ErrorExpiredCode:      http.StatusGone,
	services.ErrorUnauthorized:     http.StatusUnauthorized,
	services.ErrorForbidden:        http.StatusForbidden,
	services.ErrorNotFound:         http.StatusNotFound,
	services.ErrorConflict:         http.StatusConflict,
	services.ErrorPersistence:      http.StatusServiceUnavailable,
	services.ErrorUnavailable:      http.StatusServiceUnavailable,
}

// writeError maps service errors onto HTTP. Anything that is not a
// ServiceError is logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	se, ok := services.AsServiceError(err)
	if !ok {
		slog.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: utils.T(utils.MsgInternal)})
		return
	}
	status, ok := statusByCode[se.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "code", se.Code, "error", err)
	}
	writeJSON(w, status, errorBody{Error: string(se.Code), Message: se.Message, Missing: se.Missing})
}
