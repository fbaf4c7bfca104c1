package podengine

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		if err := v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			_, ok := ParseISODate(fl.Field().String())
			return ok
		}); err != nil {
			panic(err)
		}
		if err := v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return isSlug(fl.Field().String())
		}); err != nil {
			panic(err)
		}
		if err := v.RegisterValidation("mediaurl", func(fl validator.FieldLevel) bool {
			return isMediaURL(fl.Field().String())
		}); err != nil {
			panic(err)
		}
		validate = v
	})
	return validate
}

func isSlug(s string) bool {
	if s == "" || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return false
		}
	}
	return true
}

// isMediaURL accepts absolute http(s) URLs and site-relative upload paths.
func isMediaURL(s string) bool {
	if strings.HasPrefix(s, uploadsPrefix) {
		return !strings.Contains(s, "..")
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validateStruct runs the struct validator and renders each failure as
// "field - message". messages is keyed by "field.tag" and, for slice
// elements, "field.element.tag"; unknown keys fall back to a generic text.
func validateStruct(s any, messages map[string]string) []string {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		key := field + "." + fe.Tag()
		name := field
		if i := strings.IndexByte(field, '['); i >= 0 {
			base := field[:i]
			key = base + ".element." + fe.Tag()
			name = base + "." + strings.Trim(field[i:], "[]")
		}
		msg, ok := messages[key]
		if !ok {
			msg = genericMessage(fe)
		}
		out = append(out, name+" - "+msg)
	}
	return out
}

func genericMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("At most %s items allowed", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "url", "http_url":
		return "Invalid url"
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "alphanum":
		return "Must contain only letters and numbers"
	case "isodate":
		return "Invalid date"
	default:
		return "Invalid value"
	}
}
