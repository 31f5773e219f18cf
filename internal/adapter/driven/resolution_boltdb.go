package driven

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.etcd.io/bbolt"

	"github.com/alorle/iptv-playlist/internal/resolution"
)

const resolutionsBucket = "resolutions"

// ResolutionBoltDBRepository implements the ResolutionRepository port using BoltDB.
// Entries are keyed by source URL.
type ResolutionBoltDBRepository struct {
	db *bbolt.DB
}

// NewResolutionBoltDBRepository creates a new BoltDB-backed resolution cache.
// It initializes the required bucket if it doesn't exist.
func NewResolutionBoltDBRepository(db *bbolt.DB) (*ResolutionBoltDBRepository, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}

	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(resolutionsBucket))
		return err
	})
	if err != nil {
		return nil, err
	}

	return &ResolutionBoltDBRepository{db: db}, nil
}

// resolutionDTO is the JSON serialization format for a resolution.
type resolutionDTO struct {
	SourceURL   string `json:"source_url"`
	FinalURL    string `json:"final_url"`
	Redirects   int    `json:"redirects"`
	ContentType string `json:"content_type,omitempty"`
	ResolvedAt  int64  `json:"resolved_at"`
}

// Save persists a resolution, replacing any earlier one for the same source URL.
func (r *ResolutionBoltDBRepository) Save(ctx context.Context, res resolution.Resolution) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dto := resolutionDTO{
		SourceURL:   res.SourceURL(),
		FinalURL:    res.FinalURL(),
		Redirects:   res.Redirects(),
		ContentType: res.ContentType(),
		ResolvedAt:  res.ResolvedAt().UnixNano(),
	}

	data, err := json.Marshal(dto)
	if err != nil {
		return err
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(resolutionsBucket))
		if b == nil {
			return errors.New("resolutions bucket not found")
		}
		return b.Put([]byte(res.SourceURL()), data)
	})
}

// FindBySourceURL retrieves the cached resolution for sourceURL.
// Returns resolution.ErrNotFound if none is stored.
func (r *ResolutionBoltDBRepository) FindBySourceURL(ctx context.Context, sourceURL string) (resolution.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return resolution.Resolution{}, err
	}

	var dto resolutionDTO

	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(resolutionsBucket))
		if b == nil {
			return errors.New("resolutions bucket not found")
		}

		data := b.Get([]byte(sourceURL))
		if data == nil {
			return resolution.ErrNotFound
		}

		return json.Unmarshal(data, &dto)
	})
	if err != nil {
		return resolution.Resolution{}, err
	}

	return resolution.ReconstructResolution(
		dto.SourceURL,
		dto.FinalURL,
		dto.Redirects,
		dto.ContentType,
		time.Unix(0, dto.ResolvedAt),
	), nil
}

// Count returns the number of cached resolutions.
func (r *ResolutionBoltDBRepository) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(resolutionsBucket))
		if b == nil {
			return errors.New("resolutions bucket not found")
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}
