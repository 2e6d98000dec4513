// Package models holds the domain value types shared between the
// storage layer, the similarity index and the verification service.
package models

import "time"

// Kind identifies the media class of an input.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Record is an authoritative registry entry. Records are append-only:
// once written by the registration flow they are never mutated.
type Record struct {
	ID          string    // UUID of the record
	Fingerprint string    // canonical 192-hex-char perceptual hash
	Publisher   string    // identity of the registering party
	Title       string
	Description string
	Timestamp   int64  // registration time reported by the caller (unix seconds)
	TxHash      string // external transaction reference, may be empty
	BlockNumber int64
	CreatedAt   time.Time
}

// RecordMeta carries the caller-supplied metadata for a registration.
type RecordMeta struct {
	Publisher   string
	Title       string
	Description string
	Timestamp   int64
	TxHash      string
	BlockNumber int64
}

// Match is a candidate returned by the similarity index or by the
// linear scan. Distance is always the exact summed Hamming distance,
// never the ANN's internal score.
type Match struct {
	Fingerprint string
	Distance    int
}

// Verdict is the outcome of a verification.
type Verdict string

const (
	Verified   Verdict = "VERIFIED"
	Unverified Verdict = "UNVERIFIED"
)

// Reason qualifies an UNVERIFIED verdict so callers can tell an empty
// registry apart from a match that was simply too far away.
type Reason string

const (
	ReasonMatched    Reason = "matched"
	ReasonTooDistant Reason = "too_distant"
	ReasonNoRecords  Reason = "no_registry_entries"
)

// VerifyResult is the full outcome of a verification request.
type VerifyResult struct {
	Verdict     Verdict
	Reason      Reason
	Fingerprint string  // fingerprint extracted from the query media
	Match       *Record // best-matching record, nil when the registry is empty
	Distance    int     // exact distance to Match, -1 when Match is nil
}
