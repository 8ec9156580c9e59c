package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
)

const (
	fullNameTag = "fullname"
	passwordTag = "pwdcomposite"

	// PasswordSymbols are the special characters a password must draw from.
	PasswordSymbols = "@$!%*#?&"
	// PasswordMinLength is the minimum password length.
	PasswordMinLength = 8
)

// Whitespace covers every Unicode space separator plus \v, BOM and the
// line/paragraph separators, not only ASCII blanks.
var fullNamePattern = regexp.MustCompile(`^[A-Za-z\s\v\p{Zs}\x{FEFF}\x{2028}\x{2029}]+$`)

// registrationForm mirrors entity.FormValues with the rule set. Tag order is
// the precedence order: the first failing tag of a field is reported.
type registrationForm struct {
	FullName        string `json:"fullName" validate:"required,fullname"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,pwdcomposite"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// messages maps field -> failing tag -> human readable message.
var messages = map[string]map[string]string{
	entity.FieldFullName: {
		"required":  "Full Name is required",
		fullNameTag: "Full Name should not contain numbers or special characters",
	},
	entity.FieldEmail: {
		"required": "Email is required",
		"email":    "Invalid email address",
	},
	entity.FieldPassword: {
		"required":  "Password is required",
		"min":       "Password must be at least 8 characters",
		passwordTag: "Password must include letters, numbers, and special characters",
	},
	entity.FieldConfirmPassword: {
		"required": "Confirm Password is required",
		"eqfield":  "Passwords must match",
	},
}

var engine = newEngine()

func newEngine() *validator.Validate {
	v := validator.New()
	configure(v)
	return v
}

func configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Both registrations only fail on an empty tag name or nil func.
	_ = v.RegisterValidation(fullNameTag, fullNameValidator)
	_ = v.RegisterValidation(passwordTag, passwordValidator)
}

// Init configures the global validator used by Gin's binding.
// - Uses JSON tag names in errors.
// - Registers the registration rule tags so request structs can use them.
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		configure(v)
	}
}

// Validate runs the registration rules against values and returns a message
// for every failing field. Passing fields have no entry; a valid form yields
// an empty map.
func Validate(values entity.FormValues) map[string]string {
	out := make(map[string]string)
	err := engine.Struct(registrationForm(values))
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Only InvalidValidationError is possible here, which a fixed struct
		// type never produces.
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = messageFor(fe.Field(), fe.Tag())
	}
	return out
}

func messageFor(field, tag string) string {
	if byTag, ok := messages[field]; ok {
		if msg, ok := byTag[tag]; ok {
			return msg
		}
	}
	return fmt.Sprintf("validation failed for '%s'", tag)
}

func fullNameValidator(fl validator.FieldLevel) bool {
	input, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return fullNamePattern.MatchString(input)
}

// passwordValidator accepts 8+ characters made only of letters, digits and
// PasswordSymbols, with at least one of each class.
func passwordValidator(fl validator.FieldLevel) bool {
	input, ok := fl.Field().Interface().(string)
	if !ok || len(input) < PasswordMinLength {
		return false
	}

	var hasLetter, hasDigit, hasSymbol bool
	for _, char := range input {
		switch {
		case char >= 'a' && char <= 'z', char >= 'A' && char <= 'Z':
			hasLetter = true
		case char >= '0' && char <= '9':
			hasDigit = true
		case strings.ContainsRune(PasswordSymbols, char):
			hasSymbol = true
		default:
			return false
		}
	}

	return hasLetter && hasDigit && hasSymbol
}

// ToDetails converts binding errors into a map[field]message suitable for API error.details.
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}

	// Invalid JSON payloads
	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	if errors.As(err, &se) || errors.As(err, &ute) {
		return map[string]string{"payload": "invalid json"}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = formatFieldError(fe)
		}
		return out
	}

	// Fallback
	return map[string]string{"payload": "invalid payload"}
}

func formatFieldError(fe validator.FieldError) string {
	if byTag, ok := messages[fe.Field()]; ok {
		if msg, ok := byTag[fe.Tag()]; ok {
			return msg
		}
	}

	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "min":
		return "must be at least " + param + " characters long"
	case "max":
		return "must be at most " + param + " characters long"
	case fullNameTag:
		return "must contain letters and spaces only"
	case passwordTag:
		return "must include letters, numbers, and special characters"
	default:
		if param != "" {
			return fmt.Sprintf("validation failed for '%s' with parameter '%s'", fe.Tag(), param)
		}
		return fmt.Sprintf("validation failed for '%s'", fe.Tag())
	}
}
