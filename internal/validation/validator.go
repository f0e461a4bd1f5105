// Package validation holds the request validators registered on gin's
// binding engine and the startup checks for optional backends.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/sportsocial/backend/internal/errors"
)

var sportPattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} .'&+-]{0,39}$`)

// RegisterBindings installs the custom tags on gin's validator and reports
// fields by their json name. Safe to call more than once.
func RegisterBindings() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return Register(v)
}

// Register adds the custom tags to v.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("sport", validateSport); err != nil {
		return fmt.Errorf("register sport validator: %w", err)
	}
	if err := v.RegisterValidation("tag", validateTag); err != nil {
		return fmt.Errorf("register tag validator: %w", err)
	}
	return nil
}

// validateSport accepts names like "football", "5-a-side" or "League of Legends".
func validateSport(fl validator.FieldLevel) bool {
	return sportPattern.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validateTag(fl validator.FieldLevel) bool {
	tag := strings.TrimSpace(fl.Field().String())
	return tag != "" && len(tag) <= 30 && !strings.ContainsAny(tag, ",\n")
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

var messageTemplates = map[string]string{
	"required":  "%s is required",
	"email":     "%s must be a valid email address",
	"latitude":  "%s must be a valid latitude (-90 to 90)",
	"longitude": "%s must be a valid longitude (-180 to 180)",
	"sport":     "%s must be a sport name",
	"tag":       "%s contains an invalid tag",
	"uuid":      "%s must be a valid id",
}

var messageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

// ToAPIError converts a binding error into a 400. The first failing field
// becomes the message; every failure is listed in details.
func ToAPIError(err error) *apierrors.APIError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return apierrors.BadRequest("Invalid request body")
	}

	fields := make([]map[string]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, map[string]string{
			"field":   fe.Field(),
			"tag":     fe.Tag(),
			"message": translate(fe),
		})
	}

	first := validationErrs[0]
	apiErr := apierrors.ValidationError(first.Field(), translate(first))
	if len(fields) > 1 {
		apiErr.WithDetails(map[string]any{"fields": fields})
	}
	return apiErr
}

func translate(fe validator.FieldError) string {
	field := fe.Field()
	if tmpl, ok := messageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := messageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
