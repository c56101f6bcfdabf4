package service

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

const (
	// PlaceholderImage is shown for tokens without a usable image.
	PlaceholderImage = "https://placehold.co/300x300/333333/FFFFFF?text=No+Image"
	// DefaultIPFSGateway resolves ipfs:// image links.
	DefaultIPFSGateway = "https://ipfs.io"

	MsgInvalidAddress = "Please enter a valid Ethereum address or connect your wallet."
	MsgNoItems        = "No NFTs found for this address on the selected network."

	notAvailable = "N/A"
)

// GalleryObserver receives ownership query measurements.
type GalleryObserver interface {
	GalleryFetched(err error, count int, took time.Duration)
}

// GalleryService answers "which NFTs does this address own" through a
// hosted indexer and normalizes the answer for display.
type GalleryService struct {
	indexer     domain.OwnershipIndexer
	ipfsGateway string
	observer    GalleryObserver
	logger      *zap.Logger
}

// NewGalleryService creates the service. An empty ipfsGateway uses
// DefaultIPFSGateway; nil observer and logger are allowed.
func NewGalleryService(indexer domain.OwnershipIndexer, ipfsGateway string, observer GalleryObserver, logger *zap.Logger) *GalleryService {
	if ipfsGateway == "" {
		ipfsGateway = DefaultIPFSGateway
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GalleryService{
		indexer:     indexer,
		ipfsGateway: strings.TrimRight(ipfsGateway, "/"),
		observer:    observer,
		logger:      logger.Named("gallery"),
	}
}

// ValidateAddress accepts a hex account address. Mixed-case input must
// carry a valid EIP-55 checksum.
func ValidateAddress(address string) error {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return domain.NewError(domain.KindInvalidAddress, "validate address", MsgInvalidAddress, nil)
	}
	body := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if common.HexToAddress(address).Hex() != "0x"+body {
			return domain.NewError(domain.KindInvalidAddress, "validate address", MsgInvalidAddress, nil)
		}
	}
	return nil
}

// FetchOwned returns the display items of the NFTs owned by address. An
// address owning nothing yields an empty slice and a nil error.
func (s *GalleryService) FetchOwned(ctx context.Context, address string) ([]domain.GalleryItem, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	address = strings.TrimSpace(address)

	start := time.Now()
	owned, err := s.indexer.OwnedNFTs(ctx, address)
	if err != nil {
		s.observer.GalleryFetched(err, 0, time.Since(start))
		s.logger.Warn("ownership query failed", zap.String("owner", address), zap.Error(err))
		return nil, err
	}

	items := make([]domain.GalleryItem, 0, len(owned))
	for _, n := range owned {
		items = append(items, s.Normalize(n))
	}
	s.observer.GalleryFetched(nil, len(items), time.Since(start))
	s.logger.Debug("ownership query done", zap.String("owner", address), zap.Int("items", len(items)))
	return items, nil
}

// Normalize converts an indexer entry into a gallery item. The image always
// resolves to something renderable.
func (s *GalleryService) Normalize(n domain.OwnedNFT) domain.GalleryItem {
	meta := n.Metadata
	if meta == nil {
		meta = &domain.OwnedMetadata{}
	}

	item := domain.GalleryItem{
		Image:           s.resolveImage(n.MediaGateway, meta.Image),
		Name:            firstNonEmpty(meta.Name, n.Title),
		Description:     firstNonEmpty(meta.Description, n.Description, "No description available."),
		ContractAddress: firstNonEmpty(n.ContractAddress, notAvailable),
		TokenID:         firstNonEmpty(n.TokenID, notAvailable),
		Attributes:      meta.Attributes,
	}
	if item.Name == "" {
		item.Name = "NFT #" + firstNonEmpty(n.TokenID, "Unknown")
	}
	if item.Attributes == nil {
		item.Attributes = []domain.Attribute{}
	}
	return item
}

func (s *GalleryService) resolveImage(mediaGateway, image string) string {
	if mediaGateway != "" {
		return mediaGateway
	}
	switch {
	case strings.HasPrefix(image, "ipfs://"):
		path := strings.TrimPrefix(strings.TrimPrefix(image, "ipfs://"), "ipfs/")
		return s.ipfsGateway + "/ipfs/" + path
	case strings.HasPrefix(image, "data:"):
		return image
	case strings.HasPrefix(image, "http://"), strings.HasPrefix(image, "https://"):
		return image
	default:
		return PlaceholderImage
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
