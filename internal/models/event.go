package models

import (
	"time"
)

// EventType classifies a normalized App Store Connect notification.
type EventType string

const (
	EventTypeVersionState EventType = "VERSION_STATE"
	EventTypeBuildState   EventType = "BUILD_STATE"
	EventTypeBetaFeedback EventType = "BETA_FEEDBACK"
	EventTypeUnknown      EventType = "UNKNOWN"
)

// Detail is a single labeled value rendered in the card body.
// The slice order on NotificationEvent is the display order.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// NotificationEvent is the canonical form of an App Store Connect
// notification, immutable once constructed by the parser.
type NotificationEvent struct {
	// AppID is the platform-assigned app identifier. When the payload
	// carries no app relationship, the instance (version) identifier
	// stands in so the event always has a non-empty key.
	AppID string `json:"app_id"`
	// VersionID is set when the app identifier had to be resolved from
	// the instance relationship; metadata lookups then go through the
	// appStoreVersions endpoint.
	VersionID  string    `json:"version_id,omitempty"`
	EventType  EventType `json:"event_type"`
	RawType    string    `json:"raw_type"`
	State      string    `json:"state,omitempty"`
	Version    string    `json:"version,omitempty"`
	Summary    string    `json:"summary"`
	Details    []Detail  `json:"details"`
	ReceivedAt time.Time `json:"received_at"`
}

// AppMetadata holds the enrichment data fetched from the App Store
// Connect API, cached per app ID.
type AppMetadata struct {
	Name      string    `json:"name"`
	IconURL   string    `json:"icon_url,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}
