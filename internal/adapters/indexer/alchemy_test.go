package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

const owner = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestOwnedNFTsDecodesResponse(t *testing.T) {
	var gotPath, gotOwner, gotMeta string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOwner = r.URL.Query().Get("owner")
		gotMeta = r.URL.Query().Get("withMetadata")
		_, _ = w.Write([]byte(`{
			"ownedNfts": [
				{
					"contract": {"address": "0xabc"},
					"id": {"tokenId": "0x1"},
					"title": "Title One",
					"description": "Outer description",
					"media": [{"gateway": "https://cdn.example/1.png"}],
					"metadata": {
						"name": "Meta One",
						"image": "ipfs://img1",
						"attributes": [
							{"trait_type": "Color", "value": "Red"},
							{"key": "Level", "value": 7},
							{"value": true}
						]
					}
				},
				{
					"contract": {"address": "0xdef"},
					"id": {"tokenId": "0x2"},
					"metadata": "not an object"
				}
			],
			"totalCount": 2
		}`))
	}))
	defer srv.Close()

	client := NewAlchemyClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	nfts, err := client.OwnedNFTs(context.Background(), owner)
	require.NoError(t, err)

	assert.Equal(t, "/getNFTsForOwner/", gotPath)
	assert.Equal(t, owner, gotOwner)
	assert.Equal(t, "true", gotMeta)

	require.Len(t, nfts, 2)
	first := nfts[0]
	assert.Equal(t, "0xabc", first.ContractAddress)
	assert.Equal(t, "0x1", first.TokenID)
	assert.Equal(t, "Title One", first.Title)
	assert.Equal(t, "Outer description", first.Description)
	assert.Equal(t, "https://cdn.example/1.png", first.MediaGateway)
	require.NotNil(t, first.Metadata)
	assert.Equal(t, "Meta One", first.Metadata.Name)
	assert.Equal(t, "ipfs://img1", first.Metadata.Image)
	assert.Equal(t, []domain.Attribute{
		{Key: "Color", Value: "Red"},
		{Key: "Level", Value: "7"},
		{Key: "Attribute 3", Value: "true"},
	}, first.Metadata.Attributes)

	assert.Nil(t, nfts[1].Metadata)
	assert.Empty(t, nfts[1].MediaGateway)
}

func TestOwnedNFTsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ownedNfts": [], "totalCount": 0}`))
	}))
	defer srv.Close()

	nfts, err := NewAlchemyClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).OwnedNFTs(context.Background(), owner)
	require.NoError(t, err)
	assert.NotNil(t, nfts)
	assert.Empty(t, nfts)
}

func TestOwnedNFTsErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "message in body", status: http.StatusUnauthorized, body: `{"message":"Must be authenticated!"}`, wantMsg: "API Error: 401 - Must be authenticated!"},
		{name: "nested error message", status: http.StatusBadRequest, body: `{"error":{"message":"owner should be a valid address"}}`, wantMsg: "API Error: 400 - owner should be a valid address"},
		{name: "plain error string", status: http.StatusForbidden, body: `{"error":"bad key"}`, wantMsg: "API Error: 403 - bad key"},
		{name: "status text fallback", status: http.StatusTooManyRequests, body: `oops`, wantMsg: "API Error: 429 - Too Many Requests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewAlchemyClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).OwnedNFTs(context.Background(), owner)
			require.ErrorIs(t, err, domain.ErrAPI)
			assert.Equal(t, tt.wantMsg, domain.MessageOf(err))
		})
	}
}

func TestOwnedNFTsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewAlchemyClient(Config{APIKey: "k", BaseURL: base}, nil).OwnedNFTs(context.Background(), owner)
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, "Network Error: Could not reach Alchemy API. Check your internet connection.", domain.MessageOf(err))
}

func TestOwnedNFTsMissingKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewAlchemyClient(Config{BaseURL: srv.URL}, nil).OwnedNFTs(context.Background(), owner)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.False(t, called)
}

func TestDefaultBaseURL(t *testing.T) {
	c := NewAlchemyClient(Config{APIKey: "abc"}, nil)
	assert.Equal(t, "https://eth-sepolia.g.alchemy.com/v2/abc", c.baseURL)

	c = NewAlchemyClient(Config{APIKey: "abc", Network: "eth-mainnet"}, nil)
	assert.Equal(t, "https://eth-mainnet.g.alchemy.com/v2/abc", c.baseURL)
}
