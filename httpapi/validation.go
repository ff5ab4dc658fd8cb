package httpapi

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	telNoPattern = regexp.MustCompile(`^\+?[0-9][0-9\- ]{5,18}[0-9]$`)
	registerOnce sync.Once
)

// registerValidators installs the custom binding rules on gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return strings.ToLower(fld.Name)
		})
		_ = v.RegisterValidation("telno", func(fl validator.FieldLevel) bool {
			return telNoPattern.MatchString(fl.Field().String())
		})
	})
}

// bindingDetail renders the first binding failure for the response body.
func bindingDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "telno":
		return fe.Field() + " must be a phone number"
	default:
		return fe.Field() + " is invalid"
	}
}
