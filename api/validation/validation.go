// Package validation provides validation functionality for struct tag
// fields such as "binding", used in Gin/Validator.
package validation

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/satswap/satswap/build"
)

var log = build.AddSubLogger("VALD")

const (
	cardnumber = "cardnumber"
	username   = "username"
)

var (
	cardNumberRegex = regexp.MustCompile(`^\d{16}$`)
	whitespaceRegex = regexp.MustCompile(`\s`)
)

// isValidCardNumber checks that a bank card number is exactly 16 digits
func isValidCardNumber(fl validator.FieldLevel) bool {
	return cardNumberRegex.MatchString(fl.Field().String())
}

// isValidUsername rejects usernames with whitespace in them. Usernames are
// matched exactly, so stray spaces would make for look-alike accounts.
func isValidUsername(fl validator.FieldLevel) bool {
	return !whitespaceRegex.MatchString(fl.Field().String())
}

// fieldName reports struct fields by the name clients send them with, so
// validation errors can point at the right JSON or query field
func fieldName(field reflect.StructField) string {
	for _, tag := range []string{"json", "form", "uri"} {
		name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}

// registerValidator registers a validator in our validation engine with the
// given name.
func registerValidator(engine *validator.Validate, name string, function validator.Func) error {
	err := engine.RegisterValidation(name, function)
	if err != nil {
		return errors.Wrapf(err, "could not register %q validation", name)
	}
	return nil
}

// RegisterAllValidators registers all known validators to the Validator engine,
// quitting if this results in an error. This function should typically be
// called at startup.
func RegisterAllValidators(engine *validator.Validate) []string {
	type Validator struct {
		Name     string
		Function validator.Func
	}
	validators := []Validator{
		{
			Name:     cardnumber,
			Function: isValidCardNumber,
		},
		{
			Name:     username,
			Function: isValidUsername,
		},
	}

	engine.RegisterTagNameFunc(fieldName)

	var names []string
	for _, v := range validators {
		if err := registerValidator(engine, v.Name, v.Function); err != nil {
			log.WithError(err).Fatalf("Could not register validator %q", v.Name)
		}
		names = append(names, v.Name)
	}
	return names
}
