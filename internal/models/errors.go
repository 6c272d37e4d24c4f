package models

import "errors"

// Common errors.
var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrSourceExists      = errors.New("source already registered")
	ErrSourceIDRequired  = errors.New("source id is required")
	ErrFetcherRequired   = errors.New("fetcher is required")
	ErrScheduleRequired  = errors.New("schedule is required for scheduled sources")
	ErrInvalidStrategy   = errors.New("invalid warming strategy")
	ErrUnknownDependency = errors.New("dependency references an unknown source")
	ErrSourceInUse       = errors.New("source has registered dependents")
)
