package config

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/internal/util"
)

var validate = newValidator()

// newValidator reports fields by their yaml key so errors match the file.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("hostspec", validHostSpec)
	return v
}

// validHostSpec accepts "host", "host:port", a bare IPv6 literal, or
// "[v6]:port". The login user comes from target_username, never from here.
func validHostSpec(fl validator.FieldLevel) bool {
	spec := fl.Field().String()
	if spec == "" {
		return true
	}
	if strings.ContainsAny(spec, "@ \t/") {
		return false
	}
	host, port := splitHostSpec(spec)
	if host == "" || strings.ContainsAny(host, "[]") {
		return false
	}
	if port == "" {
		return !strings.HasSuffix(spec, ":")
	}
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n < 65536
}

// Validate checks presence of the required fields, the shape of the
// optional ones, and that target_host is a host with an optional port.
// Nothing else about the values is checked.
func Validate(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New(errors.ErrConfigParse,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.WrapWithCode(err, errors.ErrConfigParse,
			fmt.Sprintf("Couldn't validate %s", path),
			"Check the values in your config file.")
	}

	first := verrs[0]
	if first.Tag() == "required" {
		return errors.NewMissingField(first.Field(), path)
	}

	return errors.New(errors.ErrConfigParse,
		fmt.Sprintf("'%s' in %s has an invalid value: %v", first.Field(), path, first.Value()),
		suggestionFor(first))
}

func suggestionFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		options := strings.Fields(fe.Param())
		if value, ok := fe.Value().(string); ok {
			if similar := util.SuggestSimilar(value, options, 2); len(similar) > 0 {
				return fmt.Sprintf("Did you mean '%s'? Use one of: %s", similar[0], strings.Join(options, ", "))
			}
		}
		return fmt.Sprintf("Use one of: %s", strings.Join(options, ", "))
	case "hostspec":
		return "Use a hostname, IP, or SSH alias with an optional :port, e.g. example.com:2222. Put the user in target_username."
	case "file":
		return "Point it at an existing file, relative to the working directory."
	default:
		return fmt.Sprintf("The value failed the '%s' check.", fe.Tag())
	}
}
