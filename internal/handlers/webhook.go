package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/marminbh/appstore-notify/internal/parser"
	"github.com/marminbh/appstore-notify/internal/service"
	"github.com/marminbh/appstore-notify/internal/verify"
)

// signatureHeader carries the HMAC digest App Store Connect computes
// over the request body.
const signatureHeader = "X-Apple-Signature"

// WebhookHandler receives App Store Connect notifications and runs
// them through the forwarding pipeline.
type WebhookHandler struct {
	webhookSecret string
	parser        *parser.Parser
	service       *service.Service
	logger        *zap.Logger
}

// NewWebhookHandler creates the inbound webhook handler with
// dependencies.
func NewWebhookHandler(webhookSecret string, p *parser.Parser, svc *service.Service, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookSecret: webhookSecret,
		parser:        p,
		service:       svc,
		logger:        logger,
	}
}

// HandleNotification handles POST /webhooks/appstore.
//
// Only authentication and parse failures surface to the platform (401
// and 400): those mean the request itself is invalid. Enrichment and
// delivery failures are logged and the request is still acknowledged
// with a 200, since a platform-side retry would just repeat them.
func (h *WebhookHandler) HandleNotification(c *fiber.Ctx) error {
	// Fiber reuses request buffers once the handler returns, so take a
	// copy of the body before it travels into the pipeline.
	rawBody := append([]byte(nil), c.Body()...)

	if !verify.Signature(rawBody, c.Get(signatureHeader), h.webhookSecret) {
		h.logger.Warn("Rejected notification with invalid signature",
			zap.String("remote_ip", c.IP()),
		)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid signature",
		})
	}

	event, err := h.parser.Parse(rawBody)
	if err != nil {
		h.logger.Warn("Rejected unparseable notification",
			zap.Error(err),
		)
		message := "malformed payload"
		if errors.Is(err, parser.ErrMissingAppID) {
			message = "payload has no app identifier"
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": message,
		})
	}

	h.logger.Info("Accepted notification",
		zap.String("app_id", event.AppID),
		zap.String("event_type", string(event.EventType)),
		zap.String("raw_type", event.RawType),
	)

	result := h.service.Forward(c.UserContext(), event, rawBody)

	return c.JSON(fiber.Map{
		"status":    "processed",
		"delivered": result.Success,
	})
}
