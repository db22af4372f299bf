package config

import "errors"

// normalize case-folds enumerations in place. Unknown values are errors
// rather than silent fallbacks so typos surface at startup.
func normalize(cfg *Config) error {
	var errs []error
	var err error

	if cfg.Monitoring.Logging.Level, err = logLevels.Parse(string(cfg.Monitoring.Logging.Level)); err != nil {
		errs = append(errs, err)
	}
	if cfg.Monitoring.Logging.Format, err = logFormats.Parse(string(cfg.Monitoring.Logging.Format)); err != nil {
		errs = append(errs, err)
	}
	if cfg.Retry.Backoff, err = backoffModes.Parse(string(cfg.Retry.Backoff)); err != nil {
		errs = append(errs, err)
	}
	if cfg.Generation.Provider, err = providers.Parse(string(cfg.Generation.Provider)); err != nil {
		errs = append(errs, err)
	}
	if cfg.Forge.Type, err = forgeTypes.Parse(string(cfg.Forge.Type)); err != nil {
		errs = append(errs, err)
	}
	if cfg.Forge.OwnerType, err = ownerTypes.Parse(string(cfg.Forge.OwnerType)); err != nil {
		errs = append(errs, err)
	}
	if cfg.Forge.CommitStrategy, err = commitStrategies.Parse(string(cfg.Forge.CommitStrategy)); err != nil {
		errs = append(errs, err)
	}
	if cfg.Idempotency.Backend, err = storeBackends.Parse(string(cfg.Idempotency.Backend)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
