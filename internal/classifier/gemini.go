package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/httpclient"
)

const (
	DefaultModel    = "gemini-2.5-flash"
	DefaultEndpoint = "https://generativelanguage.googleapis.com/"

	apiVersion   = "v1beta"
	apiKeyHeader = "x-goog-api-key"

	// maxReplySize bounds a generateContent response read into memory.
	maxReplySize = 4 << 20
)

// Model submits one image and a prompt and returns the raw text reply.
type Model interface {
	Generate(ctx context.Context, prompt, mimeType, base64Data string) (string, error)
}

// StatusError is a non-2xx reply from the model endpoint.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model returned status %d: %s", e.Code, e.Message)
}

// GeminiConfig configures the Generative Language client.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Endpoint string
}

// Gemini calls the Generative Language REST API at
// {endpoint}/v1beta/models/{model}:generateContent.
type Gemini struct {
	http   *httpclient.Client
	url    string
	apiKey string
}

// NewGemini builds a client on top of hc. The API key travels in the
// x-goog-api-key header so it never appears in URLs or logs.
func NewGemini(_ context.Context, cfg GeminiConfig, hc *httpclient.Client) (*Gemini, error) {
	if hc == nil {
		hc = httpclient.New(nil)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	base, err := url.Parse(cfg.Endpoint)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf("invalid gemini endpoint %q", cfg.Endpoint).
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}

	model := strings.TrimPrefix(cfg.Model, "models/")
	return &Gemini{
		http:   hc,
		url:    strings.TrimRight(base.String(), "/") + "/" + apiVersion + "/models/" + url.PathEscape(model) + ":generateContent",
		apiKey: cfg.APIKey,
	}, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

// Generate sends the prompt and the inline image and concatenates the text
// parts of the first candidate.
func (g *Gemini) Generate(ctx context.Context, promptText, mimeType, base64Data string) (string, error) {
	body := generateRequest{Contents: []content{{
		Role: "user",
		Parts: []part{
			{Text: promptText},
			{InlineData: &blob{MimeType: mimeType, Data: base64Data}},
		},
	}}}

	req, err := httpclient.NewRequest(ctx, http.MethodPost, g.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set(apiKeyHeader, g.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(ctx, req)
	if err != nil {
		return "", err
	}
	if err := googleapi.CheckResponse(resp); err != nil {
		resp.Body.Close()
		return "", statusError(resp.StatusCode, err)
	}

	data, err := httpclient.ReadBody(resp, maxReplySize)
	if err != nil {
		return "", err
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode generateContent response: %w", err)
	}

	var b strings.Builder
	if len(out.Candidates) > 0 && out.Candidates[0].Content != nil {
		for _, p := range out.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}

// statusError turns the googleapi error envelope into a StatusError.
func statusError(code int, err error) *StatusError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Code)
		}
		return &StatusError{Code: apiErr.Code, Message: msg}
	}
	return &StatusError{Code: code, Message: http.StatusText(code)}
}
