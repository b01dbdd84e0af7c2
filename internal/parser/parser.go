package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marminbh/appstore-notify/internal/models"
)

var (
	// ErrMalformedPayload signals an unparseable body or a payload
	// without the expected "data" root. Mapped to a 400 by the handler.
	ErrMalformedPayload = errors.New("malformed notification payload")
	// ErrMissingAppID signals a payload with neither an app nor an
	// instance relationship to key the notification on.
	ErrMissingAppID = errors.New("notification payload has no app or instance identifier")
)

// Parser normalizes raw App Store Connect notification payloads into
// canonical events. It is stateless apart from the clock.
type Parser struct {
	now func() time.Time
}

func New() *Parser {
	return &Parser{now: time.Now}
}

type rawResource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type rawRelationship struct {
	Data rawResource `json:"data"`
}

type rawData struct {
	Type          string                 `json:"type"`
	ID            string                 `json:"id"`
	Attributes    map[string]interface{} `json:"attributes"`
	Relationships struct {
		App      rawRelationship `json:"app"`
		Instance rawRelationship `json:"instance"`
	} `json:"relationships"`
}

type rawPayload struct {
	Data *rawData `json:"data"`
}

// Parse converts a raw notification body into a NotificationEvent.
//
// Unknown-but-structurally-valid payloads still produce an event (with
// EventTypeUnknown) so a human gets notified; only true structural
// failures return an error.
func (p *Parser) Parse(rawJSON []byte) (*models.NotificationEvent, error) {
	var payload rawPayload
	if err := json.Unmarshal(rawJSON, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("%w: missing data root", ErrMalformedPayload)
	}

	data := payload.Data

	appID := data.Relationships.App.Data.ID
	versionID := ""
	if appID == "" {
		// Some notification shapes only point at the version resource;
		// the version ID then keys the event and the metadata lookup
		// resolves the app through the appStoreVersions endpoint.
		versionID = data.Relationships.Instance.Data.ID
		appID = versionID
	}
	if appID == "" {
		return nil, ErrMissingAppID
	}

	event := &models.NotificationEvent{
		AppID:      appID,
		VersionID:  versionID,
		RawType:    data.Type,
		Version:    attrString(data.Attributes, "versionString"),
		ReceivedAt: p.now(),
	}

	variant := selectVariant(data)
	event.EventType = variant.eventType
	variant.build(data, event)

	return event, nil
}

// attrString returns the first non-empty string attribute among keys.
func attrString(attrs map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if val, ok := attrs[key]; ok {
			switch v := val.(type) {
			case string:
				if v != "" {
					return v
				}
			case float64:
				return fmt.Sprintf("%g", v)
			}
		}
	}
	return ""
}
