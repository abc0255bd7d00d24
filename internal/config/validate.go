package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, _, ok := ParseClock(fl.Field().String())
		return ok
	})
	return v
}

// Validator exposes the shared instance, with the hhmm tag registered, to request handlers.
func Validator() *validator.Validate {
	return validate
}

// Validate checks field constraints, job keys and the timezone.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid settings: timezone %q: %w", cfg.Scheduler.Timezone, err)
	}
	for key := range cfg.Scheduler.Jobs {
		id, suffix, ok := strings.Cut(key, "_")
		if !ok || (suffix != "movies" && suffix != "series") {
			return fmt.Errorf("invalid settings: job key %q", key)
		}
		if _, ok := PlatformByID(id); !ok {
			return fmt.Errorf("invalid settings: job %q references unknown platform %q", key, id)
		}
	}
	return nil
}

// ParseClock reads a 24h "HH:MM" string.
func ParseClock(value string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(strings.TrimSpace(value), ":")
	if !found || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
