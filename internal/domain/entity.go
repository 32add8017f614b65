// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ComplianceDeadline is the configured upgrade deadline for the device.
type ComplianceDeadline struct {
	RequiredDate   time.Time
	GracePeriodEnd *time.Time // Optional; when set it is never before RequiredDate
	MajorUpgrade   bool       // Upgrade needs a separate installer artifact
}

// EffectiveDeadline returns the point after which the device is past due.
func (d ComplianceDeadline) EffectiveDeadline() time.Time {
	if d.GracePeriodEnd != nil {
		return *d.GracePeriodEnd
	}
	return d.RequiredDate
}

// Verdict classifies whether the device satisfies the configured deadline.
type Verdict string

const (
	VerdictCompliant           Verdict = "compliant"
	VerdictWarningWindow       Verdict = "warning_window"
	VerdictPastDue             Verdict = "past_due"
	VerdictPastDueMajorUpgrade Verdict = "past_due_major_upgrade"
	VerdictConfigurationError  Verdict = "configuration_error"
)

// IsPastDue reports whether the verdict means the effective deadline has passed.
func (v Verdict) IsPastDue() bool {
	return v == VerdictPastDue || v == VerdictPastDueMajorUpgrade
}

// IsTerminal reports whether the verdict can never be left within the process lifetime.
func (v Verdict) IsTerminal() bool {
	return v == VerdictConfigurationError
}

// Application is a running (or just launched) application.
type Application struct {
	PID        int
	BundleID   string // Empty for processes that are not app bundles
	Name       string
	Path       string
	CreateTime int64 // Process start in ms since the epoch; 0 when unknown
}

// ProcessKey identifies one process instance. PIDs are reused by the OS, the
// pair of PID and start time is not.
type ProcessKey struct {
	PID        int
	CreateTime int64
}

// Key returns the process instance identity of the application.
func (a Application) Key() ProcessKey {
	return ProcessKey{PID: a.PID, CreateTime: a.CreateTime}
}

// DisplayName returns the localized name, falling back to the bundle id.
func (a Application) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.BundleID
}

// ModifierFlags mirrors the AppKit modifier bitmask.
type ModifierFlags uint64

const (
	ModifierCapsLock   ModifierFlags = 1 << 16
	ModifierShift      ModifierFlags = 1 << 17
	ModifierControl    ModifierFlags = 1 << 18
	ModifierOption     ModifierFlags = 1 << 19
	ModifierCommand    ModifierFlags = 1 << 20
	ModifierNumericPad ModifierFlags = 1 << 21
	ModifierHelp       ModifierFlags = 1 << 22
	ModifierFunction   ModifierFlags = 1 << 23

	// DeviceIndependentFlagsMask strips the device-dependent low bits.
	DeviceIndependentFlagsMask ModifierFlags = 0xffff0000
)

var modifierNames = []struct {
	flag ModifierFlags
	name string
}{
	{ModifierControl, "CTRL"},
	{ModifierOption, "OPT"},
	{ModifierShift, "SHIFT"},
	{ModifierCommand, "CMD"},
	{ModifierCapsLock, "CAPS"},
	{ModifierFunction, "FN"},
	{ModifierNumericPad, "NUMPAD"},
	{ModifierHelp, "HELP"},
}

// String renders the flags as e.g. "CMD+SHIFT".
func (m ModifierFlags) String() string {
	var parts []string
	for _, mn := range modifierNames {
		if m&mn.flag != 0 {
			parts = append(parts, mn.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "+")
}

// KeyEvent is a key-down event forwarded by the presentation layer.
type KeyEvent struct {
	Characters    string
	Modifiers     ModifierFlags
	SurfaceActive bool // Enforcement window is the active application
}

// Combination renders the event as e.g. "CMD + W".
func (e KeyEvent) Combination() string {
	return fmt.Sprintf("%s + %s", (e.Modifiers & DeviceIndependentFlagsMask).String(), strings.ToUpper(e.Characters))
}

// KeyDisposition tells the event tap what to do with a key-down event.
type KeyDisposition string

const (
	KeyPassThrough KeyDisposition = "pass_through"
	KeySwallow     KeyDisposition = "swallow"
)

// BannedShortcut is a key combination that would let the user escape the enforcement window.
type BannedShortcut struct {
	Key       string
	Modifiers ModifierFlags
	Action    string // What the shortcut would do, for logging
}

// TerminationSource identifies where a termination attempt came from.
type TerminationSource string

const (
	TerminationMenu     TerminationSource = "menu"
	TerminationShortcut TerminationSource = "shortcut"
	TerminationSignal   TerminationSource = "signal"
	TerminationSystem   TerminationSource = "system"
)

// TerminateReply is the answer to a termination attempt.
type TerminateReply string

const (
	TerminateNow    TerminateReply = "terminate_now"
	TerminateCancel TerminateReply = "terminate_cancel"
)

// WindowEvent is a window lifecycle event forwarded by the presentation layer.
type WindowEvent string

const (
	WindowDidMove         WindowEvent = "did_move"
	WindowDidChangeScreen WindowEvent = "did_change_screen"
)

// ScreenLockEvent is a screen lock/unlock transition.
type ScreenLockEvent string

const (
	ScreenLocked   ScreenLockEvent = "locked"
	ScreenUnlocked ScreenLockEvent = "unlocked"
)

// NotificationRequest is a single local notification handed to the OS.
type NotificationRequest struct {
	Identifier         string
	Title              string
	Subtitle           string
	Body               string
	CategoryIdentifier string
	Sound              bool
	Delay              time.Duration // Trigger interval
}

// AuthorizationStatus is the OS notification permission state.
type AuthorizationStatus string

const (
	AuthorizationAuthorized    AuthorizationStatus = "authorized"
	AuthorizationDenied        AuthorizationStatus = "denied"
	AuthorizationNotDetermined AuthorizationStatus = "not_determined"
	AuthorizationProvisional   AuthorizationStatus = "provisional"
	AuthorizationUnknown       AuthorizationStatus = "unknown"
)

// AuthorizationOptions are the notification capabilities requested from the OS.
type AuthorizationOptions struct {
	Alert       bool
	Badge       bool
	Sound       bool
	Provisional bool
}
