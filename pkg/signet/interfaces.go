package signet

import (
	"context"

	"github.com/signetlabs/signet/pkg/models"
)

// Service is the verification core: fingerprint extraction,
// registration, similarity lookup and verdicts.
type Service interface {
	// ExtractFingerprint derives the canonical 192-hex-char fingerprint
	// from raw media bytes. Pass models.KindUnknown to sniff the kind.
	ExtractFingerprint(ctx context.Context, data []byte, kind models.Kind) (string, error)

	// Register extracts a fingerprint, persists the record to the
	// authoritative store and inserts it into the similarity index.
	Register(ctx context.Context, data []byte, kind models.Kind, meta models.RecordMeta) (*models.Record, error)

	// Verify answers whether the media matches a registered record.
	Verify(ctx context.Context, data []byte, kind models.Kind) (*models.VerifyResult, error)

	// VerifyFingerprint runs the decision procedure on an
	// already-extracted fingerprint.
	VerifyFingerprint(ctx context.Context, fingerprint string) (*models.VerifyResult, error)

	// Distance computes the exact summed Hamming distance between two
	// fingerprints.
	Distance(a, b string) int

	ListRecords() ([]models.Record, error)
	RecordsByPublisher(publisher string) ([]models.Record, error)
	GetRecordByFingerprint(fingerprint string) (*models.Record, error)

	// RebuildIndex forces a full reconciliation of the similarity index
	// against the record store.
	RebuildIndex() error

	// IndexSize returns the similarity index element count, -1 when the
	// index is disabled.
	IndexSize() int

	Close() error
}

// RecordStore is the contract against the authoritative record store.
// It is read-mostly: the registration flow appends, nothing mutates.
type RecordStore interface {
	CreateContent(fingerprint string, meta models.RecordMeta) (*models.Record, error)
	GetByFingerprint(fingerprint string) (*models.Record, error)
	ListAll() ([]models.Record, error)
	ListByPublisher(publisher string) ([]models.Record, error)
	Count() (int64, error)
	Close() error
}

// Logger is the logging surface consumed by the service.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
