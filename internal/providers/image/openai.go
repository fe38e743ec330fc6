package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"pandarelay/internal/domain"
	"pandarelay/internal/imagecodec"
	"pandarelay/internal/infra"
)

// ErrMissingAPIKey indicates that the editor was configured without credentials.
var ErrMissingAPIKey = errors.New("image: openai api key is required")

// Options configures the OpenAI image editor.
type Options struct {
	APIKey       string
	BaseURL      string
	Organization string
	Model        string
	Size         string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Fetcher      *Fetcher
	Logger       *infra.Logger
}

// Editor submits product images to the OpenAI image edit endpoint.
type Editor struct {
	apiKey  string
	model   string
	size    string
	timeout time.Duration
	client  *openai.Client
	fetcher *Fetcher
	logger  *infra.Logger
}

// namedReader lets the multipart builder pick a file name with an extension
// the API accepts.
type namedReader struct {
	*bytes.Reader
	name string
}

func (r namedReader) Name() string { return r.name }

// NewEditor constructs an editor with sane defaults and injected dependencies.
func NewEditor(opts Options) *Editor {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-image-1"
	}
	size := strings.TrimSpace(opts.Size)
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(FetcherOptions{Logger: logger})
	}

	apiKey := strings.TrimSpace(opts.APIKey)
	cfg := openai.DefaultConfig(apiKey)
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		cfg.BaseURL = base
	}
	cfg.OrgID = strings.TrimSpace(opts.Organization)
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	cfg.HTTPClient = httpClient

	return &Editor{
		apiKey:  apiKey,
		model:   model,
		size:    size,
		timeout: timeout,
		client:  openai.NewClientWithConfig(cfg),
		fetcher: fetcher,
		logger:  logger,
	}
}

// Model returns the configured model identifier.
func (e *Editor) Model() string {
	return e.model
}

// HasCredentials reports whether the editor can perform remote calls.
func (e *Editor) HasCredentials() bool {
	return e.apiKey != ""
}

// Refine resolves src to image bytes and runs Edit.
func (e *Editor) Refine(ctx context.Context, src Source, prompt string) (string, error) {
	if !e.HasCredentials() {
		return "", missingKey()
	}
	var (
		data []byte
		err  error
	)
	switch {
	case strings.TrimSpace(src.Base64) != "":
		data, err = imagecodec.DecodeBase64(src.Base64)
	case strings.TrimSpace(src.URL) != "":
		data, err = e.fetcher.Fetch(ctx, src.URL)
	default:
		return "", domain.NewError(domain.KindInvalidInput, "image_base64 or image_url is required", nil)
	}
	if err != nil {
		return "", err
	}
	return e.Edit(ctx, data, prompt)
}

// Edit normalizes image to PNG, asks for a single edited variant and returns it
// as base64 text.
func (e *Editor) Edit(ctx context.Context, image []byte, prompt string) (string, error) {
	if !e.HasCredentials() {
		return "", missingKey()
	}
	canonical, err := imagecodec.Normalize(image)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := openai.ImageEditRequest{
		Image:  namedReader{Reader: bytes.NewReader(canonical), name: "source.png"},
		Prompt: prompt,
		Model:  e.model,
		N:      1,
		Size:   e.size,
	}
	// gpt-image models always answer with b64_json and reject the parameter.
	if strings.HasPrefix(e.model, "dall-e") {
		req.ResponseFormat = openai.CreateImageResponseFormatB64JSON
	}

	start := time.Now()
	resp, err := e.client.CreateEditImage(ctx, req)
	if err != nil {
		return "", e.classify(ctx, err)
	}
	if len(resp.Data) == 0 {
		return "", domain.NewError(domain.KindEmptyResult, "OpenAI returned no image", nil)
	}
	out := strings.TrimSpace(resp.Data[0].B64JSON)
	if out == "" {
		return "", domain.NewError(domain.KindEmptyResult, "OpenAI returned an empty image", nil)
	}
	if err := checkOutput(out); err != nil {
		return "", domain.NewError(domain.KindEmptyResult, "OpenAI returned an invalid image", err)
	}
	e.logger.Debug().
		Str("model", e.model).
		Str("size", e.size).
		Dur("elapsed", time.Since(start)).
		Msg("image: edited image")
	return out, nil
}

// checkOutput requires the returned base64 to decode to a readable image.
func checkOutput(b64 string) error {
	data, err := imagecodec.DecodeBase64(b64)
	if err != nil {
		return err
	}
	_, err = imagecodec.Decode(data)
	return err
}

func (e *Editor) classify(ctx context.Context, err error) error {
	if domain.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		e.logger.Warn().Dur("timeout", e.timeout).Msg("image: openai request timed out")
		return domain.NewError(domain.KindTimeout, "OpenAI request timed out", err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e.logger.Warn().Int("status", apiErr.HTTPStatusCode).Str("type", apiErr.Type).Msg("image: openai api error")
		return &domain.Error{
			Kind:    domain.KindUpstream,
			Status:  apiErr.HTTPStatusCode,
			Message: "OpenAI API error: " + apiErr.Message,
			Err:     err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		e.logger.Warn().Int("status", reqErr.HTTPStatusCode).Msg("image: openai request rejected")
		return &domain.Error{
			Kind:    domain.KindUpstream,
			Status:  reqErr.HTTPStatusCode,
			Message: fmt.Sprintf("OpenAI API error: status %d", reqErr.HTTPStatusCode),
			Err:     err,
		}
	}
	e.logger.Error().Err(err).Msg("image: openai transport failure")
	return domain.NewError(domain.KindTransport, "OpenAI request failed: "+domain.Cause(err), err)
}

func missingKey() error {
	return domain.NewError(domain.KindConfig, "OpenAI API key missing", ErrMissingAPIKey)
}

var _ Refiner = (*Editor)(nil)
