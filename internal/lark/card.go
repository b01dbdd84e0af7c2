package lark

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marminbh/appstore-notify/internal/models"
)

// Card is a Lark interactive message card.
type Card struct {
	Header   Header    `json:"header"`
	Elements []Element `json:"elements"`
}

type Header struct {
	Title    Text   `json:"title"`
	Template string `json:"template"`
}

type Text struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type Element struct {
	Tag     string `json:"tag"`
	Text    *Text  `json:"text,omitempty"`
	Content string `json:"content,omitempty"`
	Extra   *Image `json:"extra,omitempty"`
}

type Image struct {
	Tag    string `json:"tag"`
	ImgKey string `json:"img_key"`
	Alt    Text   `json:"alt"`
}

// Header template colors per event tone.
const (
	templatePositive = "green"
	templateNegative = "red"
	templateNeutral  = "blue"
)

// FormatCard renders a canonical event into a Lark card. Pure function:
// no I/O, and it never fails for any well-formed event, unknown types
// included. The optional metadata upgrades the title and adds an icon;
// the optional raw payload is appended as a fenced code block.
func FormatCard(event *models.NotificationEvent, meta *models.AppMetadata, rawJSON []byte) *Card {
	name := event.AppID
	if meta != nil && meta.Name != "" {
		name = meta.Name
	}

	title := fmt.Sprintf("📱 %s", name)
	if event.Version != "" {
		title = fmt.Sprintf("📱 %s (%s)", name, event.Version)
	}

	body := &Element{
		Tag: "div",
		Text: &Text{
			Tag:     "lark_md",
			Content: bodyContent(event),
		},
	}
	if meta != nil && meta.IconURL != "" {
		body.Extra = &Image{
			Tag:    "img",
			ImgKey: meta.IconURL,
			Alt:    Text{Tag: "plain_text", Content: "App icon"},
		}
	}

	elements := []Element{*body}
	if block := rawBlock(rawJSON); block != "" {
		elements = append(elements, Element{
			Tag:     "markdown",
			Content: block,
		})
	}

	return &Card{
		Header: Header{
			Title:    Text{Tag: "plain_text", Content: title},
			Template: templateColor(event),
		},
		Elements: elements,
	}
}

// NewTextCard builds a plain neutral card from a title and markdown
// content, used by the CLI sender.
func NewTextCard(title, content string) *Card {
	return &Card{
		Header: Header{
			Title:    Text{Tag: "plain_text", Content: title},
			Template: templateNeutral,
		},
		Elements: []Element{
			{
				Tag:  "div",
				Text: &Text{Tag: "lark_md", Content: content},
			},
		},
	}
}

func bodyContent(event *models.NotificationEvent) string {
	lines := []string{fmt.Sprintf("**%s**", event.Summary)}
	for _, detail := range event.Details {
		lines = append(lines, fmt.Sprintf("%s: `%s`", detail.Label, detail.Value))
	}
	return strings.Join(lines, "\n")
}

func rawBlock(rawJSON []byte) string {
	if len(rawJSON) == 0 {
		return ""
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, rawJSON, "", "  "); err != nil {
		return ""
	}
	return fmt.Sprintf("```\n%s\n```", pretty.String())
}

var negativeStateMarkers = []string{"REJECT", "INVALID", "FAILED", "REMOVED", "EXPIRED"}

var positiveStateMarkers = []string{"READY", "ACCEPTED", "APPROVED", "VALID", "COMPLETE"}

// templateColor maps event type and state onto a header color:
// approval-like states render positive, rejections negative, feedback
// and everything unknown neutral.
func templateColor(event *models.NotificationEvent) string {
	switch event.EventType {
	case models.EventTypeBetaFeedback, models.EventTypeUnknown:
		return templateNeutral
	}

	state := strings.ToUpper(event.State)
	if state == "" {
		return templateNeutral
	}

	// Negative markers first: "INVALID" must not match "VALID".
	for _, marker := range negativeStateMarkers {
		if strings.Contains(state, marker) {
			return templateNegative
		}
	}
	for _, marker := range positiveStateMarkers {
		if strings.Contains(state, marker) {
			return templatePositive
		}
	}
	return templateNeutral
}
