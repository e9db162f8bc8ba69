// Package validators parses and validates request payloads before they
// reach the controllers. Validated values are stored in c.Locals.
package validators

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"multiproduct/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var (
	phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return otpPattern.MatchString(fl.Field().String())
	})
	return v
}

// Checker adds rules that struct tags cannot express.
type Checker interface {
	Check() map[string]string
}

// Struct validates s and returns field errors keyed by JSON name, or nil.
func Struct(s any) map[string]string {
	errs := make(map[string]string)
	if err := validate.Struct(s); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			errs["body"] = err.Error()
			return errs
		}
		for _, fe := range verrs {
			errs[fe.Field()] = message(fe)
		}
	}
	if c, ok := s.(Checker); ok {
		for k, v := range c.Check() {
			if _, exists := errs[k]; !exists {
				errs[k] = v
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required!", fe.Field())
	case "email":
		return "Invalid email!"
	case "phone":
		return "Invalid mobile number!"
	case "otp":
		return "OTP must be 6 digits!"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long!", fe.Field(), fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)!", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s!", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long!", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s!", fe.Field(), fe.Param())
	case "eqfield":
		return "Passwords do not match!"
	case "nefield":
		return fmt.Sprintf("%s must differ from the current value!", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid!", fe.Field())
	}
}

// Body parses the JSON body into T, validates it and stores it under key.
func Body[T any](key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(T)
		if err := c.BodyParser(req); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errs := Struct(req); errs != nil {
			return middleware.ValidationErrorResponse(c, errs)
		}
		c.Locals(key, req)
		return c.Next()
	}
}

// Query is Body for query string parameters.
func Query[T any](key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(T)
		if err := c.QueryParser(req); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
		}
		if errs := Struct(req); errs != nil {
			return middleware.ValidationErrorResponse(c, errs)
		}
		c.Locals(key, req)
		return c.Next()
	}
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Pagination struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

// Values returns page and limit with defaults applied.
func (p *Pagination) Values() (int, int) {
	page, limit := p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	return page, limit
}

// Paginate validates page and limit query parameters.
func Paginate() fiber.Handler {
	return Query[Pagination]("validatedPagination")
}

// PaginationFrom reads the values stored by Paginate.
func PaginationFrom(c *fiber.Ctx) (int, int) {
	p, ok := c.Locals("validatedPagination").(*Pagination)
	if !ok {
		return 1, DefaultPageSize
	}
	return p.Values()
}
