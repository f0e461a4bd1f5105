package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/sportsocial/backend/internal/logger"
	"go.uber.org/zap"
)

// CheckFunc probes one backend.
type CheckFunc func(ctx context.Context) error

// ServiceValidator runs startup checks for the optional backends an
// operator marked as required. Unrequired backends are never probed.
type ServiceValidator struct {
	required []string
	checks   map[string]CheckFunc
	timeout  time.Duration
}

// NewServiceValidator creates a validator for the given required names.
func NewServiceValidator(required []string) *ServiceValidator {
	return &ServiceValidator{
		required: required,
		checks:   make(map[string]CheckFunc),
		timeout:  10 * time.Second,
	}
}

// Register adds the check for name. A nil check marks the backend as not
// configured, which fails validation when it is required.
func (sv *ServiceValidator) Register(name string, check CheckFunc) {
	sv.checks[name] = check
}

// ValidateServices returns the first failing required check.
func (sv *ServiceValidator) ValidateServices(ctx context.Context) error {
	if len(sv.required) == 0 {
		logger.Log.Debug("No required services configured for validation")
		return nil
	}

	logger.Log.Info("Validating required services", zap.Strings("services", sv.required))
	for _, name := range sv.required {
		check, known := sv.checks[name]
		if !known {
			logger.Log.Warn("Unknown service type in validation", zap.String("service", name))
			continue
		}
		if check == nil {
			return fmt.Errorf("required service %q is not configured", name)
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, sv.timeout)
		err := check(timeoutCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("required service %q validation failed: %w", name, err)
		}
		logger.Log.Info("Service validated", zap.String("service", name))
	}
	return nil
}
