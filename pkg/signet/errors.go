package signet

import (
	"github.com/signetlabs/signet/pkg/signet/index"
	"github.com/signetlabs/signet/pkg/signet/phash"
	"github.com/signetlabs/signet/pkg/signet/storage"
)

// Sentinel errors re-exported so callers match against one surface.
//
// Input errors (never retried): ErrDecode, ErrFrameRead,
// ErrUnsupportedMedia, ErrMalformedFingerprint, ErrDuplicateFingerprint.
// Operational: ErrCapacity (reconfigure, do not retry).
// Transient: ErrStoreUnavailable (retryable).
var (
	ErrDecode               = phash.ErrDecode
	ErrFrameRead            = phash.ErrFrameRead
	ErrUnsupportedMedia     = phash.ErrUnsupportedMedia
	ErrCapacity             = index.ErrCapacity
	ErrMalformedFingerprint = index.ErrMalformedFingerprint
	ErrStoreUnavailable     = index.ErrStoreUnavailable
	ErrDuplicateFingerprint = storage.ErrDuplicateFingerprint
	ErrRecordNotFound       = storage.ErrNotFound
)
