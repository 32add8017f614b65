package domain

import "errors"

var (
	// ErrLegacyProfilePath means a malformed profile exists at the disallowed legacy location.
	ErrLegacyProfilePath = errors.New("found bad profile path")

	// ErrConfigNotFound means no configuration source could be located.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrUnrecoverable means there is no path to compliance (configuration error verdict).
	ErrUnrecoverable = errors.New("no path to compliance")

	// ErrAlreadySatisfied means the installed OS already meets the requirement.
	// It is a clean exit, not a failure.
	ErrAlreadySatisfied = errors.New("os version requirement already satisfied")
)
