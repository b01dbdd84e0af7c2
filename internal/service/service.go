package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marminbh/appstore-notify/internal/appstore"
	"github.com/marminbh/appstore-notify/internal/lark"
	"github.com/marminbh/appstore-notify/internal/models"
)

// defaultEnrichTimeout keeps a slow App Store Connect API from
// stalling the whole request; on expiry the card degrades instead.
const defaultEnrichTimeout = 3 * time.Second

// Service runs the enrich → render → sign → deliver tail of the
// pipeline for an already verified and parsed event.
type Service struct {
	metadata   *appstore.Client
	dispatcher *lark.Dispatcher
	logger     *zap.Logger

	// EnrichTimeout bounds the metadata lookup; delivery is not
	// covered by it. Defaults to defaultEnrichTimeout.
	EnrichTimeout time.Duration
}

// New creates the pipeline service. metadata may be nil, which disables
// enrichment and renders cards from the raw identifiers.
func New(metadata *appstore.Client, dispatcher *lark.Dispatcher, logger *zap.Logger) *Service {
	return &Service{
		metadata:      metadata,
		dispatcher:    dispatcher,
		logger:        logger,
		EnrichTimeout: defaultEnrichTimeout,
	}
}

// Forward renders the event into a card and delivers it. Enrichment
// and delivery failures are absorbed here: they are logged and reported
// in the result, never turned into an inbound request error.
func (s *Service) Forward(ctx context.Context, event *models.NotificationEvent, rawBody []byte) lark.DeliveryResult {
	meta := s.enrich(ctx, event)

	card := lark.FormatCard(event, meta, rawBody)

	result := s.dispatcher.Deliver(ctx, card)
	if !result.Success {
		s.logger.Error("Failed to deliver notification card",
			zap.String("app_id", event.AppID),
			zap.String("event_type", string(event.EventType)),
			zap.Int("attempts", result.Attempts),
			zap.Error(result.LastError),
		)
	}
	return result
}

func (s *Service) enrich(ctx context.Context, event *models.NotificationEvent) *models.AppMetadata {
	if s.metadata == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.EnrichTimeout)
	defer cancel()

	meta, err := s.metadata.Lookup(ctx, event)
	if err != nil {
		s.logger.Warn("Metadata enrichment failed, rendering unenriched card",
			zap.String("app_id", event.AppID),
			zap.String("version_id", event.VersionID),
			zap.Error(err),
		)
		return nil
	}
	return meta
}
