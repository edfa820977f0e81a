package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const maxBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return sf.Name
		}
		return name
	})
	return v
}

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// bindJSON decodes and validates the body into out, answering 400 itself on
// failure.
func bindJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeProblemFields(w, http.StatusBadRequest, "Invalid request body", decodeDetail(err), nil)
		return false
	}
	if err := validate.Struct(out); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]FieldError, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, FieldError{
					Field:   jsonPath(fe.Namespace()),
					Rule:    fe.Tag(),
					Param:   fe.Param(),
					Message: validationMessage(fe.Tag(), fe.Param()),
				})
			}
			writeProblemFields(w, http.StatusBadRequest, "Invalid request body", "one or more fields are invalid", fields)
			return false
		}
		writeProblem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}

// jsonPath drops the root struct name from a validator namespace.
func jsonPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func decodeDetail(err error) string {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	var tErr *time.ParseError
	switch {
	case errors.Is(err, io.EOF):
		return "request body is empty"
	case errors.As(err, &syn):
		return "invalid JSON syntax"
	case errors.As(err, &typ):
		return fmt.Sprintf("%s must be of type %s", typ.Field, typ.Type)
	case errors.As(err, &tErr), errors.Is(err, errBadDate):
		return "dates must be RFC 3339 timestamps or YYYY-MM-DD"
	}
	return err.Error()
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + param
	case "max":
		return "must be at most " + param
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}

var errBadDate = errors.New("bad date")

// Date accepts RFC 3339 timestamps and plain YYYY-MM-DD (midnight UTC).
type Date struct{ time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errBadDate
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", errBadDate, s)
}

func (d *Date) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
