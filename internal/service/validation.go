package service

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

var rollNumberPattern = regexp.MustCompile(`^\d{4}-[A-Za-z]{2,3}-\d{1,4}$`)

// NewValidator returns a validator with the domain tags registered:
// attendance_status, extension_type, user_role, clock (HH:MM) and roll_number.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("extension_type", func(fl validator.FieldLevel) bool {
		return models.ExtensionType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("roll_number", func(fl validator.FieldLevel) bool {
		return ValidRollNumber(fl.Field().String())
	})
	return v
}

// ValidRollNumber reports whether roll follows YYYY-XX-NNN: a four digit year,
// a two or three letter programme code and a one to four digit sequence.
func ValidRollNumber(roll string) bool {
	return rollNumberPattern.MatchString(roll)
}
