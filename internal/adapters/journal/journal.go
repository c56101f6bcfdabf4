// Package journal keeps one JSON file per submitted mint until its receipt
// is known.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

var _ domain.MintJournal = (*Journal)(nil)

// Journal stores pending mints under a directory.
type Journal struct {
	dir string
	now func() time.Time
}

// DefaultDir returns ~/.nftminter/pending, or a relative path when the home
// directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".nftminter", "pending")
}

// New creates a journal rooted at dir. The directory is created on first
// write.
func New(dir string) *Journal {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Journal{dir: dir, now: time.Now}
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

func (j *Journal) path(txHash string) (string, error) {
	b, err := hexutil.Decode(txHash)
	if err != nil || len(b) != common.HashLength {
		return "", fmt.Errorf("invalid transaction hash %q", txHash)
	}
	return filepath.Join(j.dir, common.BytesToHash(b).Hex()+".json"), nil
}

// Record saves p, replacing an entry for the same transaction.
func (j *Journal) Record(p domain.PendingMint) error {
	path, err := j.path(p.TxHash)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0700); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	now := j.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	// Write atomically using temp file + rename
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write journal temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename journal temp file: %w", err)
	}
	return nil
}

// Load returns the entry of txHash, or nil when there is none.
func (j *Journal) Load(txHash string) (*domain.PendingMint, error) {
	path, err := j.path(txHash)
	if err != nil {
		return nil, err
	}
	return load(path)
}

func load(path string) (*domain.PendingMint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read journal file: %w", err)
	}
	var p domain.PendingMint
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse journal file %s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

// Resolve forgets txHash. Resolving an unknown transaction is not an error.
func (j *Journal) Resolve(txHash string) error {
	path, err := j.path(txHash)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete journal file: %w", err)
	}
	return nil
}

// List returns every readable entry, oldest first. Unreadable files are
// skipped.
func (j *Journal) List() ([]domain.PendingMint, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var out []domain.PendingMint
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		p, err := load(filepath.Join(j.dir, f.Name()))
		if err != nil || p == nil {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

// CleanupOld removes entries not updated within maxAge.
func (j *Journal) CleanupOld(maxAge time.Duration) (int, error) {
	entries, err := j.List()
	if err != nil {
		return 0, err
	}
	now := j.now()
	deleted := 0
	for _, e := range entries {
		if now.Sub(e.UpdatedAt) > maxAge {
			if err := j.Resolve(e.TxHash); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}
