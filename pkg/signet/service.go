// Package signet is the verification core: it turns media bytes into
// canonical perceptual fingerprints, registers them against the
// authoritative record store, and answers "is this the same content?"
// through an ANN-accelerated, exactly re-scored distance check.
package signet

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/signetlabs/signet/pkg/logger"
	"github.com/signetlabs/signet/pkg/models"
	"github.com/signetlabs/signet/pkg/signet/index"
	"github.com/signetlabs/signet/pkg/signet/phash"
	"github.com/signetlabs/signet/pkg/signet/storage"
)

// verifyService is the default implementation of the Service interface.
type verifyService struct {
	store  RecordStore
	index  *index.Index // nil when the ANN path is disabled
	video  *phash.VideoHasher
	log    Logger
	config *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	var store RecordStore
	if cfg.Store != nil {
		store = cfg.Store
	} else {
		var err error
		store, err = storage.NewClientWithPath(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	var ix *index.Index
	if !cfg.DisableIndex {
		ix = index.Open(store, index.Options{
			Capacity:    cfg.Capacity,
			BackupPath:  cfg.IndexBackupPath,
			DriftWindow: cfg.DriftWindow,
			Logger:      cfg.Logger,
		})
	}

	return &verifyService{
		store: store,
		index: ix,
		video: &phash.VideoHasher{
			FFmpegPath:  cfg.FFmpegPath,
			FFprobePath: cfg.FFprobePath,
		},
		log:    cfg.Logger,
		config: cfg,
	}, nil
}

// ExtractFingerprint derives the canonical fingerprint from raw media.
func (s *verifyService) ExtractFingerprint(ctx context.Context, data []byte, kind models.Kind) (string, error) {
	if kind == models.KindUnknown {
		kind = phash.DetectKind(data)
	}

	switch kind {
	case models.KindImage:
		return phash.HashImage(data)
	case models.KindVideo:
		// Frame sampling goes through ffmpeg, which needs a seekable
		// file rather than a byte stream.
		tmp, err := os.CreateTemp(s.config.TempDir, "signet-*.video")
		if err != nil {
			return "", fmt.Errorf("creating temp video file: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return "", fmt.Errorf("writing temp video file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return "", fmt.Errorf("closing temp video file: %w", err)
		}
		return s.video.Hash(ctx, tmp.Name())
	default:
		return "", fmt.Errorf("%w: content not recognized as image or video", phash.ErrUnsupportedMedia)
	}
}

// Register persists a new record and makes it searchable. The store
// write is authoritative: if the index insert fails afterwards the
// record stays registered and the error reports the index condition.
func (s *verifyService) Register(ctx context.Context, data []byte, kind models.Kind, meta models.RecordMeta) (*models.Record, error) {
	fp, err := s.ExtractFingerprint(ctx, data, kind)
	if err != nil {
		return nil, err
	}
	s.log.Infof("registering content %q for %s", meta.Title, meta.Publisher)

	rec, err := s.store.CreateContent(fp, meta)
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		if err := s.index.Insert(fp); err != nil {
			s.log.Warnf("record %s persisted but index insert failed: %v", rec.ID, err)
			return nil, fmt.Errorf("record %s persisted, index insert failed: %w", rec.ID, err)
		}
	}

	s.log.Infof("registered record %s", rec.ID)
	return rec, nil
}

// Verify extracts a fingerprint from the media and classifies it.
func (s *verifyService) Verify(ctx context.Context, data []byte, kind models.Kind) (*models.VerifyResult, error) {
	fp, err := s.ExtractFingerprint(ctx, data, kind)
	if err != nil {
		return nil, err
	}
	return s.VerifyFingerprint(ctx, fp)
}

// VerifyFingerprint runs the decision procedure: best match via the
// similarity index (or the exact linear scan), then VERIFIED iff the
// exact distance is within the threshold. An empty registry yields
// UNVERIFIED with ReasonNoRecords, distinct from a too-distant match.
func (s *verifyService) VerifyFingerprint(ctx context.Context, fingerprint string) (*models.VerifyResult, error) {
	fp := phash.Normalize(fingerprint)

	match, rec, err := s.bestMatch(fp)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return &models.VerifyResult{
			Verdict:     models.Unverified,
			Reason:      models.ReasonNoRecords,
			Fingerprint: fp,
			Distance:    -1,
		}, nil
	}

	res := &models.VerifyResult{
		Fingerprint: fp,
		Match:       rec,
		Distance:    match.Distance,
	}
	if match.Distance <= s.config.Threshold {
		res.Verdict = models.Verified
		res.Reason = models.ReasonMatched
	} else {
		res.Verdict = models.Unverified
		res.Reason = models.ReasonTooDistant
	}
	s.log.Infof("verify: %s at distance %d (threshold %d)", res.Verdict, match.Distance, s.config.Threshold)
	return res, nil
}

// bestMatch prefers the ANN path and falls back to the exact linear
// scan when the index is disabled, the store was unreachable during a
// forced rebuild, or an index hit has no matching store record. The
// scan is the correctness reference; the ANN only shortlists.
func (s *verifyService) bestMatch(fp string) (*models.Match, *models.Record, error) {
	if s.index != nil {
		matches, err := s.index.Query(fp, 1)
		switch {
		case errors.Is(err, index.ErrStoreUnavailable), errors.Is(err, index.ErrCapacity):
			s.log.Warnf("index query degraded, using linear scan: %v", err)
		case err != nil:
			return nil, nil, err
		case len(matches) == 0:
			// Index is reconciled and empty, so the registry is empty.
			return nil, nil, nil
		default:
			rec, err := s.store.GetByFingerprint(matches[0].Fingerprint)
			if err == nil {
				return &matches[0], rec, nil
			}
			s.log.Warnf("index hit %.16s... has no store record, using linear scan: %v", matches[0].Fingerprint, err)
		}
	}
	return s.linearScan(fp)
}

// linearScan computes the exact distance against every record and
// keeps the minimum. Records whose stored fingerprint has no decodable
// segments are skipped with a warning; partially corrupt ones are
// compared leniently (bad segments contribute zero distance).
func (s *verifyService) linearScan(fp string) (*models.Match, *models.Record, error) {
	records, err := s.store.ListAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: listing records: %v", index.ErrStoreUnavailable, err)
	}

	var best *models.Match
	var bestRec *models.Record
	for i := range records {
		rec := records[i]
		dist, skipped := phash.Distance(fp, rec.Fingerprint)
		if skipped == phash.Segments {
			s.log.Warnf("linear scan: skipping record %s, no decodable segments", rec.ID)
			continue
		}
		if skipped > 0 {
			s.log.Warnf("linear scan: record %s has %d malformed segment(s), distance understated", rec.ID, skipped)
		}
		if best == nil || dist < best.Distance {
			best = &models.Match{Fingerprint: phash.Normalize(rec.Fingerprint), Distance: dist}
			bestRec = &rec
		}
	}
	return best, bestRec, nil
}

// Distance computes the exact summed Hamming distance between two
// fingerprints. Skipped malformed segments are logged so the leniency
// stays observable.
func (s *verifyService) Distance(a, b string) int {
	dist, skipped := phash.Distance(a, b)
	if skipped > 0 {
		s.log.Warnf("distance: %d malformed segment pair(s) skipped", skipped)
	}
	return dist
}

func (s *verifyService) ListRecords() ([]models.Record, error) {
	return s.store.ListAll()
}

func (s *verifyService) RecordsByPublisher(publisher string) ([]models.Record, error) {
	return s.store.ListByPublisher(publisher)
}

func (s *verifyService) GetRecordByFingerprint(fingerprint string) (*models.Record, error) {
	return s.store.GetByFingerprint(phash.Normalize(fingerprint))
}

func (s *verifyService) RebuildIndex() error {
	if s.index == nil {
		return errors.New("similarity index is disabled")
	}
	return s.index.Rebuild()
}

func (s *verifyService) IndexSize() int {
	if s.index == nil {
		return -1
	}
	return s.index.Len()
}

func (s *verifyService) Close() error {
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.log.Warnf("closing index: %v", err)
		}
	}
	return s.store.Close()
}
