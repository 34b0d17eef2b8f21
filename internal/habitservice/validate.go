package habitservice

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/habithub/internal/apperr"
	"github.com/starford/habithub/internal/models"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperr.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func wrapInvalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
}

func validateHabit(h *models.Habit) error {
	return wrapInvalid(validation.ValidateStruct(h,
		validation.Field(&h.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&h.Kind, validation.Required, validation.In(models.KindDo, models.KindDont)),
		validation.Field(&h.Mode, validation.In(models.ModePersonal, models.ModeTogether)),
		validation.Field(&h.Goal, validation.Min(0.0)),
		validation.Field(&h.Frequency),
	))
}

func validateEmail(email string) error {
	return wrapInvalid(validation.Validate(email,
		validation.Required.Error("email is required"),
		validation.Match(emailPattern).Error("must be an email address"),
	))
}

func validateLogs(logs models.Logs) error {
	var errs []error
	for _, key := range logs.Dates() {
		if !models.ValidDate(key) {
			errs = append(errs, fmt.Errorf("log date %q: want YYYY-MM-DD", key))
		}
	}
	return wrapInvalid(errors.Join(errs...))
}
