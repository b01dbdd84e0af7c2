package appstore

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/marminbh/appstore-notify/internal/models"
)

// maxResponseBodySize caps how much of an API response is read.
const maxResponseBodySize = 1 << 20

type appAttributes struct {
	Name           string `json:"name"`
	IconAssetToken struct {
		TemplateURL string `json:"templateUrl"`
	} `json:"iconAssetToken"`
}

type appResource struct {
	Type       string        `json:"type"`
	Attributes appAttributes `json:"attributes"`
}

// extractApp pulls name and icon from a GET /v1/apps/{id} response.
func extractApp(body []byte) (*models.AppMetadata, error) {
	var payload struct {
		Data appResource `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode app resource: %w", err)
	}
	if payload.Data.Attributes.Name == "" {
		return nil, fmt.Errorf("app resource has no name attribute")
	}
	return metadataFromAttributes(payload.Data.Attributes), nil
}

// extractIncludedApp pulls the app out of the included resources of a
// GET /v1/appStoreVersions/{id}?include=app response.
func extractIncludedApp(body []byte) (*models.AppMetadata, error) {
	var payload struct {
		Included []appResource `json:"included"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode version resource: %w", err)
	}
	for _, resource := range payload.Included {
		if resource.Type == "apps" && resource.Attributes.Name != "" {
			return metadataFromAttributes(resource.Attributes), nil
		}
	}
	return nil, fmt.Errorf("version resource includes no app")
}

func metadataFromAttributes(attrs appAttributes) *models.AppMetadata {
	return &models.AppMetadata{
		Name:    attrs.Name,
		IconURL: resolveIconTemplate(attrs.IconAssetToken.TemplateURL, iconSize),
	}
}

// resolveIconTemplate substitutes a concrete size and format into a
// templated icon URL like "https://.../{w}x{h}bb.{f}".
func resolveIconTemplate(templateURL string, size int) string {
	if templateURL == "" {
		return ""
	}
	dimension := strconv.Itoa(size)
	return strings.NewReplacer(
		"{w}", dimension,
		"{h}", dimension,
		"{f}", "png",
	).Replace(templateURL)
}

func readAll(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata response: %w", err)
	}
	return body, nil
}
