package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"scribe/internal/media"
	"scribe/internal/services"
)

// VisionBackend describes images through any OpenAI-compatible chat
// completions endpoint. Endpoint, model, and key come from configuration.
type VisionBackend struct {
	apiKey string
	apiURL string
	model  string
	client *http.Client
}

// NewVision constructs a vision backend against the configured endpoint.
func NewVision(apiKey, apiURL, model string) *VisionBackend {
	return &VisionBackend{
		apiKey: apiKey,
		apiURL: apiURL,
		model:  model,
		client: &http.Client{},
	}
}

func (b *VisionBackend) Name() string { return "vision" }

func (b *VisionBackend) Process(ctx context.Context, locator string, kind media.Kind) (*Content, error) {
	if kind != media.KindImage {
		return nil, services.Wrap(services.ErrValidation, "vision", "process",
			fmt.Sprintf("vision backend only handles images, got %s", kind), nil)
	}

	payload, err := fetchLocator(ctx, b.client, locator)
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	request := visionRequest{
		Model: b.model,
		Messages: []visionMessage{{
			Role: "user",
			Content: []visionContent{
				{Type: "text", Text: imagePrompt + " End with a line \"Tags:\" followed by up to five comma-separated tags."},
				{Type: "image_url", ImageURL: &visionImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", mimeTypeFromLocator(locator), encoded),
				}},
			},
		}},
		MaxTokens: visionMaxTokens,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "vision", "describe", "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "vision", "describe", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "vision", "describe", b.apiURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "vision", "describe", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternalTool, "vision", "describe",
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(data), 200)), nil)
	}

	var parsed visionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, services.Wrap(services.ErrTransient, "vision", "describe", "decode response", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, services.Wrap(services.ErrTransient, "vision", "describe", "empty response", nil)
	}

	description, tags := splitTags(parsed.Choices[0].Message.Content)
	return &Content{Description: description, Tags: tags}, nil
}

// splitTags separates a trailing "Tags:" line from the description body.
func splitTags(content string) (string, []string) {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		lowered := strings.ToLower(line)
		if !strings.HasPrefix(lowered, "tags:") {
			break
		}
		raw := strings.TrimSpace(line[len("tags:"):])
		var tags []string
		for _, tag := range strings.Split(raw, ",") {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				tags = append(tags, tag)
			}
		}
		description := strings.TrimSpace(strings.Join(lines[:i], "\n"))
		return description, tags
	}
	return strings.TrimSpace(content), nil
}
