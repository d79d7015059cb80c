package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"entcal/internal/model"
)

// Validate checks a normalized config for:
//   - a known backend driver with the URL it needs
//   - a loadable timezone and a parseable refresh schedule
//   - a supported fallback status
//   - well-formed, unique watch entries
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.Backend.Driver {
	case "rest", "postgres", "dir":
		if cfg.Backend.URL == "" {
			errs = append(errs, fmt.Sprintf("backend.url is required for driver %q", cfg.Backend.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("backend.driver %q is not one of rest, postgres, dir", cfg.Backend.Driver))
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("timezone %q: %v", cfg.Timezone, err))
	}
	if _, err := cron.ParseStandard(cfg.RefreshCron); err != nil {
		errs = append(errs, fmt.Sprintf("refresh %q: %v", cfg.RefreshCron, err))
	}

	switch cfg.FallbackStatus {
	case "unlisted", "cancelled":
	default:
		errs = append(errs, fmt.Sprintf("fallback_status %q is not one of unlisted, cancelled", cfg.FallbackStatus))
	}

	if cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		errs = append(errs, fmt.Sprintf("retry.max_delay %s is below retry.base_delay %s", cfg.Retry.MaxDelay, cfg.Retry.BaseDelay))
	}

	seen := make(map[string]int)
	for i, w := range cfg.Watch {
		kind, err := model.ParseEntityKind(w.Kind)
		if err != nil {
			errs = append(errs, fmt.Sprintf("watch[%d]: %v", i, err))
			continue
		}
		if w.ID == "" {
			errs = append(errs, fmt.Sprintf("watch[%d]: id is required", i))
			continue
		}
		key := string(kind) + "/" + w.ID
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Sprintf("watch[%d]: duplicate %s (first at watch[%d])", i, key, prev))
			continue
		}
		seen[key] = i
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Fallback returns the configured fallback as a Status.
func (c *Config) Fallback() model.Status {
	if c.FallbackStatus == "unlisted" {
		return model.StatusUnlisted
	}
	return model.StatusCancelled
}
