package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pandarelay/internal/domain"
	"pandarelay/internal/imagecodec"
	"pandarelay/internal/infra"
)

// ErrMissingCredentials indicates that the store URL or access token is unset.
var ErrMissingCredentials = errors.New("catalog: store url and access token are required")

const accessTokenHeader = "X-Shopify-Access-Token"

// Options configures the Shopify Admin REST client.
type Options struct {
	StoreURL       string
	AccessToken    string
	APIVersion     string
	ProductLimit   int
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client talks to the Shopify Admin REST API of a single store.
type Client struct {
	baseURL      string
	accessToken  string
	apiVersion   string
	productLimit int
	timeout      time.Duration
	httpClient   *http.Client
	logger       *infra.Logger
}

type imageAttachmentRequest struct {
	Image imageAttachment `json:"image"`
}

type imageAttachment struct {
	Attachment string `json:"attachment"`
}

type productsResponse struct {
	Products []json.RawMessage `json:"products"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "2024-01"
	}
	limit := opts.ProductLimit
	if limit <= 0 {
		limit = 50
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{
		baseURL:      normalizeStoreURL(opts.StoreURL),
		accessToken:  strings.TrimSpace(opts.AccessToken),
		apiVersion:   apiVersion,
		productLimit: limit,
		timeout:      timeout,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.baseURL != "" && c.accessToken != ""
}

// ListProducts returns the first page of product records, untouched.
func (c *Client) ListProducts(ctx context.Context) ([]json.RawMessage, error) {
	if !c.HasCredentials() {
		return nil, domain.NewError(domain.KindConfig, "Shopify store URL or access token missing", ErrMissingCredentials)
	}
	endpoint := fmt.Sprintf("%s/products.json?limit=%d", c.adminURL(), c.productLimit)

	status, raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, c.transportError("Error fetching products", err)
	}
	if status != http.StatusOK {
		c.logger.Warn().Int("status", status).Msg("catalog: list products rejected")
		return nil, domain.UpstreamError(status, fmt.Sprintf("Failed to fetch products: %d", status))
	}

	var decoded productsResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, domain.NewError(domain.KindUpstream, "Error fetching products: invalid response body", fmt.Errorf("catalog: decode products: %w", err))
	}
	if decoded.Products == nil {
		decoded.Products = []json.RawMessage{}
	}
	c.logger.Debug().Int("count", len(decoded.Products)).Msg("catalog: listed products")
	return decoded.Products, nil
}

// AttachImage uploads a base64 image to the product's image list and returns
// the upstream response body verbatim.
func (c *Client) AttachImage(ctx context.Context, productID, imageBase64 string) (json.RawMessage, error) {
	if !c.HasCredentials() {
		return nil, domain.NewError(domain.KindConfig, "Shopify store URL or access token missing", ErrMissingCredentials)
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "product_id is required", nil)
	}
	attachment := imagecodec.StripDataURL(imageBase64)
	if attachment == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "image_base64 is required", nil)
	}

	body, err := json.Marshal(imageAttachmentRequest{Image: imageAttachment{Attachment: attachment}})
	if err != nil {
		return nil, fmt.Errorf("catalog: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/products/%s/images.json", c.adminURL(), url.PathEscape(productID))

	status, raw, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, c.transportError("Error uploading image", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		c.logger.Warn().Int("status", status).Str("product_id", productID).Msg("catalog: attach image rejected")
		return nil, domain.UpstreamError(status, fmt.Sprintf("Failed to upload image: %d", status))
	}
	if !json.Valid(raw) {
		return nil, domain.NewError(domain.KindUpstream, "Error uploading image: invalid response body", nil)
	}
	c.logger.Debug().Str("product_id", productID).Msg("catalog: attached image")
	return json.RawMessage(raw), nil
}

func (c *Client) adminURL() string {
	return c.baseURL + "/admin/api/" + c.apiVersion
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set(accessTokenHeader, c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("catalog: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("catalog: read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) transportError(prefix string, err error) error {
	if domain.IsTimeout(err) {
		return domain.NewError(domain.KindTimeout, "Shopify request timed out", err)
	}
	c.logger.Error().Err(err).Msg("catalog: transport failure")
	return domain.NewError(domain.KindTransport, fmt.Sprintf("%s: %s", prefix, domain.Cause(err)), err)
}

func normalizeStoreURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}
