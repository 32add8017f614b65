package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
	"github.com/eliteGoblin/focusd/update_guard/internal/metrics"
)

const (
	// NotificationTriggerDelay is the near-immediate trigger for blocked-app notifications.
	NotificationTriggerDelay = time.Millisecond

	blockedTitle = "Application terminated"
	blockedBody  = "Please update your device to use this application"
)

// BlockedNotification builds the notification for a terminated application.
func BlockedNotification(applicationName, identifier string) domain.NotificationRequest {
	return domain.NotificationRequest{
		Identifier:         identifier,
		Title:              blockedTitle,
		Subtitle:           fmt.Sprintf("(%s)", applicationName),
		Body:               blockedBody,
		CategoryIdentifier: "alert",
		Sound:              true,
		Delay:              NotificationTriggerDelay,
	}
}

// NotificationDispatcher sends user-visible notifications about blocked actions.
// It never blocks callers on delivery and never returns OS failures.
type NotificationDispatcher struct {
	center  domain.NotificationCenter
	newID   func() string
	metrics *metrics.Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewNotificationDispatcher creates a dispatcher.
func NewNotificationDispatcher(center domain.NotificationCenter, m *metrics.Metrics, logger *zap.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{
		center:  center,
		newID:   func() string { return uuid.New().String() },
		metrics: m,
		logger:  logger,
	}
}

// RequestAuthorization asks for notification permission. Safe to call repeatedly.
func (d *NotificationDispatcher) RequestAuthorization(ctx context.Context) {
	opts := domain.AuthorizationOptions{Alert: true, Badge: true, Sound: true, Provisional: true}

	granted, err := d.center.RequestAuthorization(ctx, opts)
	if err != nil {
		d.logger.Warn("notification authorization request failed", zap.Error(err))
		return
	}
	if granted {
		d.logger.Info("User granted notifications - application blocking status now available")
	} else {
		d.logger.Info("User denied notifications - application blocking status will be unavailable")
	}
}

// NotifyBlocked reports a terminated application in the background.
func (d *NotificationDispatcher) NotifyBlocked(ctx context.Context, applicationName string) {
	req := BlockedNotification(applicationName, d.newID())

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(ctx, req)
	}()
}

func (d *NotificationDispatcher) deliver(ctx context.Context, req domain.NotificationRequest) {
	status, err := d.center.AuthorizationStatus(ctx)
	if err != nil {
		d.logger.Warn("failed to read notification settings", zap.Error(err))
		status = domain.AuthorizationUnknown
	}

	switch status {
	case domain.AuthorizationAuthorized:
		d.add(ctx, req)
	case domain.AuthorizationProvisional:
		d.logger.Info("Application terminated with provisional user notification status")
		d.add(ctx, req)
	case domain.AuthorizationDenied:
		d.logger.Info("Application terminated without user notification")
		d.metrics.Notifications.WithLabelValues("denied").Inc()
	case domain.AuthorizationNotDetermined:
		d.logger.Info("Application terminated without user notification status")
		d.metrics.Notifications.WithLabelValues("not_determined").Inc()
	case domain.AuthorizationUnknown:
		d.logger.Info("Application terminated with unknown user notification status")
		d.metrics.Notifications.WithLabelValues("unknown").Inc()
	default:
		d.logger.Info("Application terminated with unknown user notification status",
			zap.String("status", string(status)))
		d.metrics.Notifications.WithLabelValues("unknown").Inc()
	}
}

func (d *NotificationDispatcher) add(ctx context.Context, req domain.NotificationRequest) {
	if err := d.center.Add(ctx, req); err != nil {
		d.logger.Warn("failed to deliver notification",
			zap.String("identifier", req.Identifier),
			zap.Error(err))
		d.metrics.Notifications.WithLabelValues("failed").Inc()
		return
	}
	d.metrics.Notifications.WithLabelValues("sent").Inc()
}

// Wait blocks until every pending notification has been handed off (for tests
// and orderly shutdown).
func (d *NotificationDispatcher) Wait() {
	d.wg.Wait()
}
