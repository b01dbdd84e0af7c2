package parser

import (
	"fmt"
	"strings"

	"github.com/marminbh/appstore-notify/internal/models"
)

// variant maps one notification shape onto the canonical event fields.
// match returns a specificity score: the number of discriminator
// signals the payload satisfies. Zero means no match.
type variant struct {
	eventType models.EventType
	match     func(data *rawData) int
	build     func(data *rawData, event *models.NotificationEvent)
}

// variants in tie-break priority order: when two shapes score equally,
// the earlier entry wins.
var variants = []variant{
	{
		eventType: models.EventTypeBetaFeedback,
		match: func(data *rawData) int {
			score := 0
			if strings.Contains(strings.ToUpper(data.Type), "FEEDBACK") {
				score += 2
			}
			for _, key := range []string{"comment", "feedbackText", "rating", "deviceModel", "osVersion"} {
				if _, ok := data.Attributes[key]; ok {
					score++
				}
			}
			return score
		},
		build: buildBetaFeedback,
	},
	{
		eventType: models.EventTypeBuildState,
		match: func(data *rawData) int {
			score := 0
			if data.Type == "BUILD_STATE_UPDATED" {
				score += 2
			}
			if hasAll(data.Attributes, "oldState", "newState") {
				score++
			}
			return score
		},
		build: buildBuildState,
	},
	{
		eventType: models.EventTypeVersionState,
		match: func(data *rawData) int {
			score := 0
			switch data.Type {
			case "APP_STORE_VERSION_STATE_UPDATED", "appStoreVersionAppVersionStateUpdated":
				score += 2
			}
			if hasAll(data.Attributes, "oldState", "newState") || hasAll(data.Attributes, "oldValue", "newValue") {
				score++
			}
			return score
		},
		build: buildVersionState,
	},
}

// selectVariant picks the most specific matching variant; ties break on
// the fixed priority order of the variants table. Payloads matching
// nothing fall through to the unknown builder.
func selectVariant(data *rawData) variant {
	best := variant{eventType: models.EventTypeUnknown, build: buildUnknown}
	bestScore := 0
	for _, v := range variants {
		if score := v.match(data); score > bestScore {
			best = v
			bestScore = score
		}
	}
	return best
}

func hasAll(attrs map[string]interface{}, keys ...string) bool {
	for _, key := range keys {
		if _, ok := attrs[key]; !ok {
			return false
		}
	}
	return true
}

func buildVersionState(data *rawData, event *models.NotificationEvent) {
	oldState := attrString(data.Attributes, "oldState", "oldValue")
	newState := attrString(data.Attributes, "newState", "newValue")

	event.State = newState
	event.Summary = fmt.Sprintf("App version state changed to %s", valueOr(newState, "an unknown state"))

	if event.Version != "" {
		event.Details = append(event.Details, models.Detail{Label: "Version", Value: event.Version})
	}
	event.Details = append(event.Details,
		models.Detail{Label: "Old state", Value: valueOr(oldState, "N/A")},
		models.Detail{Label: "New state", Value: valueOr(newState, "N/A")},
	)
}

func buildBuildState(data *rawData, event *models.NotificationEvent) {
	oldState := attrString(data.Attributes, "oldState", "oldValue")
	newState := attrString(data.Attributes, "newState", "newValue")

	event.State = newState
	event.Summary = fmt.Sprintf("Build state changed to %s", valueOr(newState, "an unknown state"))

	if event.Version != "" {
		event.Details = append(event.Details, models.Detail{Label: "Build", Value: event.Version})
	}
	event.Details = append(event.Details,
		models.Detail{Label: "Old state", Value: valueOr(oldState, "N/A")},
		models.Detail{Label: "New state", Value: valueOr(newState, "N/A")},
	)
}

func buildBetaFeedback(data *rawData, event *models.NotificationEvent) {
	text := attrString(data.Attributes, "comment", "feedbackText", "text")
	if text != "" {
		event.Summary = fmt.Sprintf("New TestFlight feedback: %s", excerpt(text, 80))
		event.Details = append(event.Details, models.Detail{Label: "Feedback", Value: text})
	} else {
		event.Summary = "New TestFlight feedback received"
	}

	if rating := attrString(data.Attributes, "rating"); rating != "" {
		event.Details = append(event.Details, models.Detail{Label: "Rating", Value: rating})
	}
	if device := attrString(data.Attributes, "deviceModel", "device"); device != "" {
		event.Details = append(event.Details, models.Detail{Label: "Device", Value: device})
	}
	if osVersion := attrString(data.Attributes, "osVersion"); osVersion != "" {
		event.Details = append(event.Details, models.Detail{Label: "OS", Value: osVersion})
	}
	if submitter := attrString(data.Attributes, "submittedBy", "contactEmail", "email"); submitter != "" {
		event.Details = append(event.Details, models.Detail{Label: "Submitted by", Value: submitter})
	}
}

func buildUnknown(data *rawData, event *models.NotificationEvent) {
	switch {
	case data.Type != "":
		event.Summary = fmt.Sprintf("New notification: %s", data.Type)
	case data.ID != "":
		event.Summary = fmt.Sprintf("New notification: %s", data.ID)
	default:
		event.Summary = "New notification received"
	}

	if data.Type != "" {
		event.Details = append(event.Details, models.Detail{Label: "Type", Value: data.Type})
	}
	if data.ID != "" {
		event.Details = append(event.Details, models.Detail{Label: "ID", Value: data.ID})
	}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func excerpt(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
