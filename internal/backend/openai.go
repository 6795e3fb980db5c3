package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"scribe/internal/media"
	"scribe/internal/services"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	openAITranscriptionModel = "whisper-1"
	openAIVisionModel        = "gpt-4o-mini"
	visionMaxTokens          = 500

	imagePrompt = "Describe this image in detail. Include objects, people, text, colors, and scene context."
)

// OpenAIBackend transcribes audio/video via the Whisper API and describes
// images via the chat completions vision API.
type OpenAIBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// OpenAIOption customizes the backend.
type OpenAIOption func(*OpenAIBackend)

// WithOpenAIBaseURL overrides the API base URL (used in tests).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(b *OpenAIBackend) {
		if url != "" {
			b.baseURL = url
		}
	}
}

// WithOpenAIHTTPClient overrides the default HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(b *OpenAIBackend) {
		if client != nil {
			b.client = client
		}
	}
}

// NewOpenAI constructs the OpenAI backend. The per-request deadline comes
// from the caller's context, so the HTTP client itself carries no timeout.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIBackend {
	b := &OpenAIBackend{
		apiKey:  apiKey,
		baseURL: defaultOpenAIBaseURL,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Process(ctx context.Context, locator string, kind media.Kind) (*Content, error) {
	switch kind {
	case media.KindAudio, media.KindVideo:
		return b.transcribe(ctx, locator)
	case media.KindImage:
		return b.describe(ctx, locator)
	default:
		return nil, services.Wrap(services.ErrValidation, "openai", "process",
			fmt.Sprintf("unsupported media kind %s", kind), nil)
	}
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

func (b *OpenAIBackend) transcribe(ctx context.Context, locator string) (*Content, error) {
	payload, err := fetchLocator(ctx, b.client, locator)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("model", openAITranscriptionModel); err != nil {
		return nil, services.Wrap(services.ErrTransient, "openai", "transcribe", "build form", err)
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, services.Wrap(services.ErrTransient, "openai", "transcribe", "build form", err)
	}
	part, err := writer.CreateFormFile("file", filenameFromLocator(locator))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "openai", "transcribe", "build form", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, services.Wrap(services.ErrTransient, "openai", "transcribe", "write payload", err)
	}
	if err := writer.Close(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "openai", "transcribe", "finalize form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "openai", "transcribe", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var parsed transcriptionResponse
	if err := b.do(req, &parsed); err != nil {
		return nil, err
	}

	return &Content{
		Text:       parsed.Text,
		Language:   parsed.Language,
		DurationMS: int64(parsed.Duration * 1000),
	}, nil
}

type visionRequest struct {
	Model     string          `json:"model"`
	Messages  []visionMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type visionMessage struct {
	Role    string          `json:"role"`
	Content []visionContent `json:"content"`
}

type visionContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

type visionImageURL struct {
	URL string `json:"url"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (b *OpenAIBackend) describe(ctx context.Context, locator string) (*Content, error) {
	payload, err := fetchLocator(ctx, b.client, locator)
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	request := visionRequest{
		Model: openAIVisionModel,
		Messages: []visionMessage{{
			Role: "user",
			Content: []visionContent{
				{Type: "text", Text: imagePrompt},
				{Type: "image_url", ImageURL: &visionImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", mimeTypeFromLocator(locator), encoded),
				}},
			},
		}},
		MaxTokens: visionMaxTokens,
	}

	encodedBody, err := json.Marshal(request)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "openai", "describe", "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(encodedBody))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "openai", "describe", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var parsed visionResponse
	if err := b.do(req, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, services.Wrap(services.ErrTransient, "openai", "describe", "empty response", nil)
	}

	return &Content{Description: parsed.Choices[0].Message.Content}, nil
}

func (b *OpenAIBackend) do(req *http.Request, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "openai", "request", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "openai", "request", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrExternalTool, "openai", "request",
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(data), 200)), nil)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return services.Wrap(services.ErrTransient, "openai", "request", "decode response", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
