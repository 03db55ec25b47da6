package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"finledger/internal/core"
	"finledger/internal/storage"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 10 << 20
	dateLayout    = "2006-01-02"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// report json names in validation errors
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// requestError is a malformed body or a failed validation; the handler
// answers 400 with its details.
type requestError struct {
	message string
	details []FieldError
}

func (e *requestError) Error() string { return e.message }

// DecodeJSON reads one JSON object into dst and validates it.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &requestError{message: "request body is empty"}
		}
		return &requestError{message: fmt.Sprintf("malformed JSON: %v", err)}
	}
	return ValidateRequest(dst)
}

// ValidateRequest runs the struct's validate tags.
func ValidateRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &requestError{message: err.Error()}
	}
	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Type:    fe.Tag(),
		})
	}
	return &requestError{message: "invalid request data", details: details}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "This field is required"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "datetime":
		return "Must be a date formatted as YYYY-MM-DD"
	case "len":
		return "Must be exactly " + fe.Param() + " characters"
	case "max":
		return "Value is too long"
	case "min":
		return "Value is too short"
	case "alpha":
		return "Must contain letters only"
	default:
		return "Invalid value"
	}
}

// writeRequestError answers a decode or validation failure, or falls back
// to the service error mapping.
func writeRequestError(w http.ResponseWriter, err error) {
	var re *requestError
	if errors.As(err, &re) {
		if len(re.details) > 0 {
			ValidationError(re.details).Write(w)
			return
		}
		BadRequestError(re.message).Write(w)
		return
	}
	ErrorFrom(err).Write(w)
}

// flexAmount accepts an amount as a JSON string or a JSON number so that
// "12.50" and 12.50 decode alike.
type flexAmount string

func (a *flexAmount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*a = flexAmount(strings.TrimSpace(str))
		return nil
	}
	*a = flexAmount(s)
	return nil
}

// ParseDate parses a YYYY-MM-DD value as a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", core.ErrInvalidDate, s)
	}
	return t, nil
}

// ParseTransactionFilter reads account_id, kind, from, to and limit from a
// query string. Missing values leave the filter open.
func ParseTransactionFilter(q url.Values) (storage.TransactionFilter, error) {
	f := storage.TransactionFilter{AccountID: strings.TrimSpace(q.Get("account_id"))}
	if v := strings.TrimSpace(q.Get("kind")); v != "" {
		k, err := core.ParseKind(v)
		if err != nil {
			return f, err
		}
		f.Kind = k
	}
	for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			d, err := ParseDate(v)
			if err != nil {
				return f, err
			}
			*dst = d
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("%w: to is before from", core.ErrInvalidInput)
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return f, fmt.Errorf("%w: limit must be between 1 and 1000", core.ErrInvalidInput)
		}
		f.Limit = n
	}
	return f, nil
}

// ParsePeriod reads from/to, defaulting to the calendar month of now.
func ParsePeriod(q url.Values, now time.Time) (from, to time.Time, err error) {
	from, to = core.MonthRange(now)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if from, err = ParseDate(v); err != nil {
			return
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		if to, err = ParseDate(v); err != nil {
			return
		}
	}
	if to.Before(from) {
		err = fmt.Errorf("%w: to is before from", core.ErrInvalidInput)
	}
	return
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
