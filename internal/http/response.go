package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"canopy-backend-go/internal/services"

	"github.com/go-playground/validator/v10"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type PagedResponse[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

type ItemsResponse[T any] struct {
	Items []T `json:"items"`
}

var validate = validator.New()

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a ServiceError to its status. Anything else is logged
// and reported as 500 without details.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if serr, ok := services.AsServiceError(err); ok {
		WriteError(w, serr.Status, serr.Message)
		return
	}
	log.Printf("[http] %s %s: %v", r.Method, r.URL.Path, err)
	WriteError(w, http.StatusInternalServerError, "Internal server error")
}

// decodeJSON reads the body into dst and runs struct validation on it. The
// returned error is always a 400 ServiceError.
func decodeJSON(r *http.Request, dst interface{}) error {
	return decodeBody(r, dst, true)
}

// decodeOptionalJSON leaves dst untouched when the request has no body. An
// empty chunked body reports no length, so emptiness is detected on read.
func decodeOptionalJSON(r *http.Request, dst interface{}) error {
	return decodeBody(r, dst, false)
}

func decodeBody(r *http.Request, dst interface{}, required bool) error {
	if r.Body == nil {
		if required {
			return services.ErrBadRequest("Request body is required")
		}
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if required {
				return services.ErrBadRequest("Request body is required")
			}
			return nil
		}
		return services.ErrBadRequest("Invalid payload")
	}
	if err := validate.Struct(dst); err != nil {
		return services.ErrBadRequest(validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Invalid payload"
	}
	fe := fieldErrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "oneof":
		return field + " must be one of " + fe.Param()
	case "uuid", "uuid4":
		return field + " must be a valid id"
	case "url":
		return field + " must be a valid URL"
	}
	return field + " is invalid"
}

func lowerFirst(value string) string {
	if value == "" {
		return value
	}
	return strings.ToLower(value[:1]) + value[1:]
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// pageParams reads page/pageSize and returns limit and offset for them.
func pageParams(r *http.Request, defaultSize int) (page, size, offset int) {
	page = parseInt(r.URL.Query().Get("page"), 1)
	size = parseInt(r.URL.Query().Get("pageSize"), defaultSize)
	if size > 100 {
		size = 100
	}
	return page, size, (page - 1) * size
}
