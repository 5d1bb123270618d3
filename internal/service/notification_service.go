package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mesa-ayuda/helpdesk-service/internal/config"
	"github.com/mesa-ayuda/helpdesk-service/internal/events"
)

// WebhookSender delivers one event to an HTTP endpoint.
type WebhookSender interface {
	Send(ctx context.Context, url string, event events.Event) error
}

// NotificationService turns domain events into email and webhook
// notifications. Handlers only enqueue; Run performs delivery.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	sender     WebhookSender
	queue      chan events.Event
}

// NewNotificationService creates the service. A nil sender delivers webhooks
// with fiber's HTTP client.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, sender WebhookSender) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = NewFiberWebhookSender(cfg.WebhookTimeout())
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		sender:     sender,
		queue:      make(chan events.Event, size),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventClientRegistered, n.handleClientRegistered)
	n.dispatcher.Subscribe(events.EventClientPasswordReset, n.handlePasswordReset)
	n.dispatcher.Subscribe(events.EventLegacyCredentialUsed, n.handleLegacyCredential)
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleTicketUpdated)
}

func (n *NotificationService) handleClientRegistered(ctx context.Context, event events.Event) error {
	n.logger.Info("ClientRegistered", zap.String("client_id", event.ClientID))
	return n.enqueue(event)
}

func (n *NotificationService) handlePasswordReset(ctx context.Context, event events.Event) error {
	n.logger.Info("ClientPasswordReset", zap.String("client_id", event.ClientID))
	return n.enqueue(event)
}

func (n *NotificationService) handleLegacyCredential(ctx context.Context, event events.Event) error {
	n.logger.Warn("LegacyCredentialUsed", zap.String("client_id", event.ClientID))
	return nil
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.enqueue(event)
}

func (n *NotificationService) handleTicketUpdated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketUpdated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.enqueue(event)
}

// ErrQueueFull is returned by handlers when the delivery queue is saturated.
var ErrQueueFull = errors.New("notification queue full")

func (n *NotificationService) enqueue(event events.Event) error {
	select {
	case n.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued notifications until ctx is cancelled.
func (n *NotificationService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-n.queue:
			n.deliver(ctx, event)
		}
	}
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event) {
	switch event.Type {
	case events.EventClientRegistered, events.EventClientPasswordReset:
		n.sendEmailNotificationStub(ctx, event)
	case events.EventTicketCreated:
		n.sendEmailNotificationStub(ctx, event)
		n.sendWebhookNotification(ctx, event)
	default:
		n.sendWebhookNotification(ctx, event)
	}
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("client_id", event.ClientID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotification(ctx context.Context, event events.Event) {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return
	}
	if err := n.sender.Send(ctx, url, event); err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

type fiberWebhookSender struct {
	timeout time.Duration
}

// NewFiberWebhookSender posts events as JSON using fiber's client.
func NewFiberWebhookSender(timeout time.Duration) WebhookSender {
	return &fiberWebhookSender{timeout: timeout}
}

func (f *fiberWebhookSender) Send(ctx context.Context, url string, event events.Event) error {
	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(url).JSON(event).Timeout(timeout)
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook responded with status %d", code)
	}
	return nil
}
