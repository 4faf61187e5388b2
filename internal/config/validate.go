package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is a shared validator instance, matching the package-level
// singleton pattern struct-tag validators conventionally use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg's struct tags using the validate:"..." conventions
// on LoggingConfig/TelemetryConfig and friends.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateMaintainers(cfg)
}

func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// validateMaintainers enforces the one rule struct tags can't express:
// every window except FileReconciler must be non-empty (§4.5.1-§4.5.2),
// while FileReconciler's window is allowed to be empty, meaning "disabled"
// (§4.5.3). The window grammar itself is checked by
// pkg/maintenance.ParseWindow when the loops start, not here.
func validateMaintainers(cfg *Config) error {
	required := map[string]string{
		"deletion":          cfg.Maintainers.Deletion.Window,
		"compression":       cfg.Maintainers.Compression.Window,
		"record_reconciler": cfg.Maintainers.RecordReconciler.Window,
	}
	for name, window := range required {
		if window == "" {
			return fmt.Errorf("maintainers.%s.window must not be empty", name)
		}
	}
	return nil
}
