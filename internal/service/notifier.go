package service

import (
	"context"
	"log/slog"

	"github.com/nsabot/updatescanner/internal/model"
	"github.com/nsabot/updatescanner/internal/webhook"
)

// WebhookSender delivers a change payload
type WebhookSender interface {
	Send(ctx context.Context, hook model.Webhook, payload webhook.ChangePayload, batchID string) (*model.Notification, error)
}

// ChangeNotifier posts a webhook for every scan batch that found changes and keeps the delivery log
type ChangeNotifier struct {
	hook   model.Webhook
	sender WebhookSender
	logs   NotificationRepository
}

// NewChangeNotifier creates a notifier for the webhook at url
func NewChangeNotifier(url string, sender WebhookSender, logs NotificationRepository) (*ChangeNotifier, error) {
	hook := model.Webhook{URL: url}
	if err := hook.Validate(); err != nil {
		return nil, err
	}

	return &ChangeNotifier{
		hook:   hook,
		sender: sender,
		logs:   logs,
	}, nil
}

// NotifyChanges sends one notification for the changed pages of a batch. Failures are logged.
func (n *ChangeNotifier) NotifyChanges(ctx context.Context, batchID string, trigger model.ScanTrigger, pages []model.ChangedPage) {
	slog.Info("Sending change notification",
		"batch_id", batchID,
		"pages", len(pages),
		"webhook_url", n.hook.URL,
	)

	payload := webhook.FormatChangePayload(batchID, trigger, pages)

	entry, err := n.sender.Send(ctx, n.hook, payload, batchID)
	if err != nil {
		slog.Error("Failed to send change notification",
			"batch_id", batchID,
			"error", err,
		)
	}
	if entry == nil {
		return
	}

	if saveErr := n.logs.Create(context.WithoutCancel(ctx), entry); saveErr != nil {
		slog.Error("Failed to save notification log",
			"batch_id", batchID,
			"error", saveErr,
		)
	}
}
