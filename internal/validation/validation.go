// Package validation checks inbound form data before it is processed.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

// DefaultMaxUpload is the largest accepted uploaded document.
const DefaultMaxUpload int64 = 10 << 20

var (
	ErrEmptyFile    = errors.New("file is empty")
	ErrFileTooLarge = errors.New("file is too large")
	ErrNotPDF       = errors.New("file must be a PDF")
)

// ValidationError lists failed fields with human readable messages.
type ValidationError struct {
	Fields map[string]string `json:"details"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Struct validates a tagged form struct (pointer or value).
func Struct(form interface{}) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	t := reflect.TypeOf(form)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		label := fe.Field()
		if sf, ok := t.FieldByName(fe.StructField()); ok {
			if l := sf.Tag.Get("label"); l != "" {
				label = l
			}
		}
		if _, seen := out.Fields[fe.Field()]; !seen {
			out.Fields[fe.Field()] = message(label, fe.Tag(), fe.Field())
		}
	}
	return out
}

// Payload validates a managed form payload against the rules of its form
// type. Form types without rules accept any payload.
func Payload(formType string, payload map[string]interface{}) error {
	rules, ok := payloadRules[formType]
	if !ok {
		return nil
	}

	// Missing keys must still trip "required"
	data := make(map[string]interface{}, len(rules))
	for field := range rules {
		v, present := payload[field]
		if !present || v == nil {
			v = ""
		}
		data[field] = v
	}

	failed := validate.ValidateMap(data, rules)
	if len(failed) == 0 {
		return nil
	}

	out := &ValidationError{Fields: make(map[string]string, len(failed))}
	for field, ferr := range failed {
		tag := "invalid"
		var verrs validator.ValidationErrors
		if e, ok := ferr.(error); ok && errors.As(e, &verrs) && len(verrs) > 0 {
			tag = verrs[0].Tag()
		}
		out.Fields[field] = message(humanLabel(field), tag, field)
	}
	return out
}

func message(label, tag, field string) string {
	switch tag {
	case "required":
		if field == "recaptchaToken" {
			return "reCAPTCHA verification failed"
		}
		return label + " is required"
	case "max":
		return label + " is too long"
	case "min":
		return label + " is too short"
	case "email":
		return "Invalid email address"
	case "url":
		return "Invalid " + label
	default:
		return label + " is invalid"
	}
}

func humanLabel(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
			r += 'a' - 'A'
		} else if i == 0 && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PDF checks an uploaded document is a non-empty PDF of at most max bytes
// (DefaultMaxUpload when max <= 0). The type is sniffed from content.
func PDF(data []byte, max int64) error {
	if max <= 0 {
		max = DefaultMaxUpload
	}
	if len(data) == 0 {
		return ErrEmptyFile
	}
	if int64(len(data)) > max {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), max)
	}
	if mt := mimetype.Detect(data); !mt.Is("application/pdf") {
		return fmt.Errorf("%w: detected %s", ErrNotPDF, mt.String())
	}
	return nil
}
