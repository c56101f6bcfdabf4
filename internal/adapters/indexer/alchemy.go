package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

// DefaultNetwork is the Alchemy network queried when none is configured.
const DefaultNetwork = "eth-sepolia"

// Config configures an AlchemyClient.
type Config struct {
	APIKey  string
	Network string
	// BaseURL replaces https://{network}.g.alchemy.com/v2/{key} when set.
	BaseURL string
	Timeout time.Duration
}

// AlchemyClient lists owned NFTs through the Alchemy NFT API.
type AlchemyClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewAlchemyClient creates a client. A nil logger disables logging.
func NewAlchemyClient(cfg Config, logger *zap.Logger) *AlchemyClient {
	if cfg.Network == "" {
		cfg.Network = DefaultNetwork
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.g.alchemy.com/v2/%s", cfg.Network, cfg.APIKey)
	}
	return &AlchemyClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.Named("alchemy"),
	}
}

type ownedResponse struct {
	OwnedNfts []ownedNFT `json:"ownedNfts"`
}

type ownedNFT struct {
	Contract struct {
		Address string `json:"address"`
	} `json:"contract"`
	ID struct {
		TokenID string `json:"tokenId"`
	} `json:"id"`
	Title       string          `json:"title"`
	Description json.RawMessage `json:"description"`
	Media       []struct {
		Gateway string `json:"gateway"`
	} `json:"media"`
	Metadata json.RawMessage `json:"metadata"`
}

type rawMetadata struct {
	Name        json.RawMessage `json:"name"`
	Description json.RawMessage `json:"description"`
	Image       json.RawMessage `json:"image"`
	Attributes  json.RawMessage `json:"attributes"`
}

// OwnedNFTs returns the NFTs held by owner. An owner with nothing yields an
// empty slice and a nil error.
func (c *AlchemyClient) OwnedNFTs(ctx context.Context, owner string) ([]domain.OwnedNFT, error) {
	if c.apiKey == "" {
		return nil, domain.NewError(domain.KindMissingCredential, "owned nfts",
			"Alchemy API key is missing. Set ALCHEMY_API_KEY.", nil)
	}

	q := url.Values{}
	q.Set("owner", owner)
	q.Set("withMetadata", "true")
	endpoint := c.baseURL + "/getNFTsForOwner/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("indexer unreachable", zap.Error(err))
		return nil, domain.NewError(domain.KindNetwork, "owned nfts",
			"Network Error: Could not reach Alchemy API. Check your internet connection.", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "owned nfts", "failed to read Alchemy response", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := extractErrorMessage(body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("indexer rejected query", zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return nil, domain.NewError(domain.KindAPI, "owned nfts",
			fmt.Sprintf("API Error: %d - %s", resp.StatusCode, msg), nil)
	}

	var parsed ownedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domain.NewError(domain.KindAPI, "owned nfts", "Alchemy returned an unreadable response", err)
	}

	out := make([]domain.OwnedNFT, 0, len(parsed.OwnedNfts))
	for _, n := range parsed.OwnedNfts {
		out = append(out, n.toDomain())
	}
	c.logger.Debug("owned nfts fetched", zap.String("owner", owner), zap.Int("count", len(out)))
	return out, nil
}

func (n ownedNFT) toDomain() domain.OwnedNFT {
	item := domain.OwnedNFT{
		ContractAddress: n.Contract.Address,
		TokenID:         n.ID.TokenID,
		Title:           n.Title,
		Description:     stringOf(n.Description),
	}
	if len(n.Media) > 0 {
		item.MediaGateway = n.Media[0].Gateway
	}
	if meta, ok := decodeMetadata(n.Metadata); ok {
		item.Metadata = meta
	}
	return item
}

// decodeMetadata reads token metadata leniently. Collections publish
// numbers, nested objects and arrays where strings are expected.
func decodeMetadata(raw json.RawMessage) (*domain.OwnedMetadata, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	var m rawMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &domain.OwnedMetadata{
		Name:        stringOf(m.Name),
		Description: stringOf(m.Description),
		Image:       stringOf(m.Image),
		Attributes:  decodeAttributes(m.Attributes),
	}, true
}

func decodeAttributes(raw json.RawMessage) []domain.Attribute {
	var list []map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &list) != nil {
		return nil
	}
	attrs := make([]domain.Attribute, 0, len(list))
	for i, entry := range list {
		key := stringOf(entry["trait_type"])
		if key == "" {
			key = stringOf(entry["key"])
		}
		if key == "" {
			key = fmt.Sprintf("Attribute %d", i+1)
		}
		attrs = append(attrs, domain.Attribute{Key: key, Value: stringOf(entry["value"])})
	}
	return attrs
}

// stringOf renders a JSON scalar as text. Strings are unquoted, null is
// empty and anything else keeps its JSON form.
func stringOf(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// extractErrorMessage reads {"message":..}, {"error":{"message":..}} or
// {"error":".."}.
func extractErrorMessage(body []byte) string {
	var parsed struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(parsed.Error, &nested) == nil {
		return nested.Message
	}
	var plain string
	if json.Unmarshal(parsed.Error, &plain) == nil {
		return plain
	}
	return ""
}
