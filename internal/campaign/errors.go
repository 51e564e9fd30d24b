package campaign

import "errors"

// Preflight sentinels. A run that fails preflight never dispatches anything.
var (
	// ErrNoRecipients is returned when the recipient list is empty.
	ErrNoRecipients = errors.New("campaign: recipient list is empty")
	// ErrNoTemplate is returned when the message template is blank.
	ErrNoTemplate = errors.New("campaign: message template is empty")
	// ErrAuthentication is returned when the provider rejects the configured
	// credentials during the eager preflight check.
	ErrAuthentication = errors.New("campaign: provider authentication failed")
	// ErrRunConsumed is returned when Run is invoked on a runner whose state
	// machine already left Idle. Completed is terminal; a new run requires a
	// fresh runner.
	ErrRunConsumed = errors.New("campaign: runner already used, create a new one")
)
