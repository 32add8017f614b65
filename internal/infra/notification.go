package infra

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

const osascriptPath = "/usr/bin/osascript"

// ScriptNotificationCenter implements domain.NotificationCenter with
// osascript "display notification". Permission is probed by running a no-op
// script: a failure means the user or an MDM policy has denied scripting.
type ScriptNotificationCenter struct {
	cmdRunner CommandRunner

	mu     sync.Mutex
	status domain.AuthorizationStatus
}

// NewScriptNotificationCenter creates a notification center.
func NewScriptNotificationCenter() *ScriptNotificationCenter {
	return NewScriptNotificationCenterWithRunner(&RealCommandRunner{})
}

// NewScriptNotificationCenterWithRunner creates a notification center with an injectable runner (for testing).
func NewScriptNotificationCenterWithRunner(runner CommandRunner) *ScriptNotificationCenter {
	return &ScriptNotificationCenter{cmdRunner: runner, status: domain.AuthorizationNotDetermined}
}

// RequestAuthorization probes osascript. Provisional delivery is granted
// whenever the probe succeeds.
func (c *ScriptNotificationCenter) RequestAuthorization(ctx context.Context, opts domain.AuthorizationOptions) (bool, error) {
	err := c.cmdRunner.Run(ctx, osascriptPath, "-e", `return "ok"`)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err != nil:
		c.status = domain.AuthorizationDenied
		return false, nil
	case opts.Alert:
		c.status = domain.AuthorizationAuthorized
	case opts.Provisional:
		c.status = domain.AuthorizationProvisional
	default:
		c.status = domain.AuthorizationDenied
		return false, nil
	}
	return true, nil
}

// AuthorizationStatus returns the result of the last authorization request.
func (c *ScriptNotificationCenter) AuthorizationStatus(_ context.Context) (domain.AuthorizationStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, nil
}

// Add waits for the trigger delay, then displays the notification.
func (c *ScriptNotificationCenter) Add(ctx context.Context, req domain.NotificationRequest) error {
	if req.Delay > 0 {
		timer := time.NewTimer(req.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := c.cmdRunner.Run(ctx, osascriptPath, "-e", NotificationScript(req)); err != nil {
		return fmt.Errorf("failed to display notification %s: %w", req.Identifier, err)
	}
	return nil
}

// NotificationScript renders req as an AppleScript statement.
func NotificationScript(req domain.NotificationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "display notification %s with title %s", appleScriptString(req.Body), appleScriptString(req.Title))
	if req.Subtitle != "" {
		fmt.Fprintf(&b, " subtitle %s", appleScriptString(req.Subtitle))
	}
	if req.Sound {
		b.WriteString(` sound name "default"`)
	}
	return b.String()
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

var _ domain.NotificationCenter = (*ScriptNotificationCenter)(nil)
