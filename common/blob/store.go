package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nexum-io/nexum/common/logger"
	"github.com/nexum-io/nexum/common/models"
)

// Store is the content-addressed filesystem sidecar. Payloads above the
// inline threshold live here; the task queue and execution rows hold only
// claim-check pointers.
type Store struct {
	dir string
	log *logger.Logger
}

// NewStore creates a blob store rooted at dir
func NewStore(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

// Put writes data to <dir>/<hash[0:2]>/<hash> and returns the claim-check
// pointer. Naming is content-addressed, so an existing file with the same
// hash is left in place.
func (s *Store) Put(data []byte) (*models.ClaimCheck, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	prefix := filepath.Join(s.dir, hash[:2])
	path := filepath.Join(prefix, hash)

	if info, err := os.Stat(path); err == nil {
		// Dedup hit
		s.log.Debug("blob exists", "sha256", hash, "size", info.Size())
		return models.NewClaimCheck(path, hash, int64(len(data))), nil
	}

	if err := os.MkdirAll(prefix, 0o755); err != nil {
		return nil, fmt.Errorf("create blob prefix dir: %w", err)
	}

	// Write-rename so readers never see partial files
	tmp, err := os.CreateTemp(prefix, hash+".tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("rename blob: %w", err)
	}

	s.log.Debug("blob stored", "sha256", hash, "size", len(data))
	return models.NewClaimCheck(path, hash, int64(len(data))), nil
}

// Get reads a blob and verifies its hash. A mismatch means the sidecar no
// longer holds what the pointer was minted for.
func (s *Store) Get(path, wantSHA256 string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}

	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != wantSHA256 {
		return nil, fmt.Errorf("blob %s hash mismatch (got %s, want %s): %w",
			path, got, wantSHA256, models.ErrDataLoss)
	}

	return data, nil
}

// Resolve returns the payload a claim-check pointer refers to
func (s *Store) Resolve(cc *models.ClaimCheck) ([]byte, error) {
	return s.Get(cc.Path, cc.SHA256)
}
