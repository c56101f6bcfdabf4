package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

const (
	DefaultAPIURL     = "https://api.pinata.cloud"
	DefaultGatewayURL = "https://gateway.pinata.cloud"

	pinJSONPath = "/pinning/pinJSONToIPFS"
	pinFilePath = "/pinning/pinFileToIPFS"
)

// Credentials authenticate against the Pinata API. Either the key pair or
// the JWT must be set; the JWT wins when both are.
type Credentials struct {
	APIKey    string
	APISecret string
	JWT       string
}

// Config configures a PinataClient.
type Config struct {
	APIURL      string
	GatewayURL  string
	Credentials Credentials
	Timeout     time.Duration
}

// PinataClient pins JSON documents and files through the Pinata HTTP API.
type PinataClient struct {
	apiURL     string
	gatewayURL string
	creds      Credentials
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// NewPinataClient creates a client. A nil logger disables logging.
func NewPinataClient(cfg Config, logger *zap.Logger) *PinataClient {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = DefaultGatewayURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PinataClient{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
		creds:      cfg.Credentials,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("pinata"),
		now:        time.Now,
	}
}

// PinJSON serializes v and pins it. It returns the gateway URL of the
// pinned document.
func (c *PinataClient) PinJSON(ctx context.Context, v interface{}) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", domain.NewError(domain.KindValidation, "pin json", "metadata is not serializable", err)
	}
	return c.pin(ctx, pinJSONPath, "application/json", bytes.NewReader(body))
}

// PinFile uploads r as a multipart form file named name and pins it.
func (c *PinataClient) PinFile(ctx context.Context, name string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return c.pin(ctx, pinFilePath, form.FormDataContentType(), &buf)
}

// Fetch downloads a pinned object through its gateway URL.
func (c *PinataClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "fetch", "could not reach the IPFS gateway", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "fetch", "failed to read gateway response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewError(domain.KindAPI, "fetch",
			fmt.Sprintf("gateway returned status %d", resp.StatusCode), nil)
	}
	return body, nil
}

// GatewayURL returns the gateway URL of a content hash.
func (c *PinataClient) GatewayURL(hash string) string {
	return c.gatewayURL + "/ipfs/" + hash
}

func (c *PinataClient) pin(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	if err := c.checkCredentials(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("pin request failed", zap.String("path", path), zap.Error(err))
		msg := "Unknown error occurred while pinning to IPFS."
		if ue := errors.Unwrap(err); ue != nil {
			msg = ue.Error()
		}
		return "", domain.NewError(domain.KindNetwork, "pin", msg, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewError(domain.KindNetwork, "pin", "failed to read Pinata response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := extractErrorDetail(respBody)
		if detail == "" {
			detail = statusText(resp)
		}
		c.logger.Warn("pinata rejected pin",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", detail))
		return "", domain.NewError(domain.KindAPI, "pin", "Pinata API error: "+detail, nil)
	}

	var parsed pinResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", domain.NewError(domain.KindAPI, "pin", "Pinata returned an unreadable response", err)
	}
	if parsed.IpfsHash == "" {
		return "", domain.NewError(domain.KindAPI, "pin", "Pinata response did not include an IpfsHash", nil)
	}
	if _, err := cid.Decode(parsed.IpfsHash); err != nil {
		return "", domain.NewError(domain.KindAPI, "pin",
			fmt.Sprintf("Pinata returned an invalid content hash %q", parsed.IpfsHash), err)
	}

	c.logger.Info("pinned content",
		zap.String("path", path),
		zap.String("hash", parsed.IpfsHash),
		zap.Int64("size", parsed.PinSize),
		zap.Duration("took", c.now().Sub(start)))

	return c.GatewayURL(parsed.IpfsHash), nil
}

func (c *PinataClient) authorize(req *http.Request) {
	if c.creds.JWT != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.JWT)
		return
	}
	req.Header.Set("pinata_api_key", c.creds.APIKey)
	req.Header.Set("pinata_secret_api_key", c.creds.APISecret)
}

// checkCredentials rejects missing credentials and JWTs that are malformed
// or already expired, before any request is sent.
func (c *PinataClient) checkCredentials() error {
	if c.creds.JWT == "" {
		if c.creds.APIKey == "" || c.creds.APISecret == "" {
			return domain.NewError(domain.KindMissingCredential, "pin",
				"Pinata credentials are missing. Set PINATA_KEY and PINATA_SECRET, or PINATA_JWT.", nil)
		}
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.creds.JWT, claims); err != nil {
		return domain.NewError(domain.KindMissingCredential, "pin", "PINATA_JWT is not a valid JWT", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return domain.NewError(domain.KindMissingCredential, "pin", "PINATA_JWT has an unreadable exp claim", err)
	}
	if exp != nil && !exp.After(c.now()) {
		return domain.NewError(domain.KindMissingCredential, "pin",
			fmt.Sprintf("PINATA_JWT expired at %s", exp.UTC().Format(time.RFC3339)), nil)
	}
	return nil
}

// extractErrorDetail reads the provider error body. Pinata answers with
// {"error":{"reason":..,"details":..}} or, on some endpoints, {"error":"..."}.
func extractErrorDetail(body []byte) string {
	var parsed struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if len(parsed.Error) > 0 {
		var structured struct {
			Reason  string `json:"reason"`
			Details string `json:"details"`
		}
		if json.Unmarshal(parsed.Error, &structured) == nil {
			if structured.Details != "" {
				return structured.Details
			}
			if structured.Reason != "" {
				return structured.Reason
			}
		}
		var plain string
		if json.Unmarshal(parsed.Error, &plain) == nil && plain != "" {
			return plain
		}
	}
	return parsed.Message
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}
