// Package validation runs struct-tag validation over models and reports
// failures as (field, message) pairs.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is a single failed constraint, keyed by its JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects every failed constraint of one validation pass.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed.
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Message returns the message reported for field, or "".
func (e Errors) Message(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Messages maps "path:tag" (or just "path") to a human readable message.
// Paths use JSON names with slice indexes removed, e.g. "images.url".
type Messages map[string]string

// Described is implemented by models that carry their own messages.
type Described interface {
	ValidationMessages() Messages
}

// Enum is implemented by string enums; the "enum" tag calls Valid.
type Enum interface {
	Valid() bool
}

var (
	validate   = newValidator()
	indexRegex = regexp.MustCompile(`\[\d+\]`)

	pincodeRegex = regexp.MustCompile(`^[0-9]{6}$`)
	phoneRegex   = regexp.MustCompile(`^[6-9]\d{9}$`)
	emailRegex   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameRegex    = regexp.MustCompile(`^[a-zA-Z\s]*$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})

	mustRegister(v, "enum", func(fl validator.FieldLevel) bool {
		e, ok := fl.Field().Interface().(Enum)
		return ok && e.Valid()
	})
	mustRegister(v, "pincode", regexRule(pincodeRegex))
	mustRegister(v, "inphone", regexRule(phoneRegex))
	mustRegister(v, "emailaddr", regexRule(emailRegex))
	mustRegister(v, "alphaspace", regexRule(nameRegex))
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

func regexRule(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// RegisterStructRule adds a cross-field rule for the given model types.
func RegisterStructRule(fn validator.StructLevelFunc, types ...interface{}) {
	validate.RegisterStructValidation(fn, types...)
}

// Struct validates v and returns Errors, or nil when v is valid.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var messages Messages
	if d, ok := v.(Described); ok {
		messages = d.ValidationMessages()
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		path := fieldPath(fe.Namespace())
		out = append(out, FieldError{Field: path, Message: messageFor(messages, path, fe)})
	}
	return out
}

// Merge combines validation results; nil inputs are skipped.
func Merge(errs ...error) error {
	var out Errors
	for _, err := range errs {
		if err == nil {
			continue
		}
		var verrs Errors
		if !errors.As(err, &verrs) {
			return err
		}
		out = append(out, verrs...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Field builds a single-field error.
func Field(field, message string) Errors {
	return Errors{{Field: field, Message: message}}
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(namespace string) string {
	parts := strings.SplitN(namespace, ".", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return namespace
}

func messageFor(messages Messages, path string, fe validator.FieldError) string {
	key := indexRegex.ReplaceAllString(path, "")
	if msg, ok := messages[key+":"+fe.Tag()]; ok {
		return msg
	}
	if msg, ok := messages[key]; ok {
		return msg
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", key)
	case "min":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s", key, fe.Param())
	case "enum":
		return fmt.Sprintf("%v is not a valid %s", fe.Value(), key)
	}
	return fmt.Sprintf("%s failed the %s check", key, fe.Tag())
}
