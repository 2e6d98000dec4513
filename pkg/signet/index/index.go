// Package index maintains the in-memory approximate nearest-neighbor
// structure over fingerprint vectors and keeps it reconciled against
// the authoritative record store.
//
// The index is never authoritative: on any detected drift between its
// synchronized count and the store's record count it is rebuilt from
// the store wholesale. ANN results are candidates only; every candidate
// is re-scored with the exact Hamming distance before it leaves this
// package.
package index

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/signetlabs/signet/pkg/logger"
	"github.com/signetlabs/signet/pkg/models"
	"github.com/signetlabs/signet/pkg/signet/phash"
)

var (
	// ErrCapacity means the index is full. This is an operational
	// condition (raise the configured capacity), not a transient one.
	ErrCapacity = errors.New("similarity index at capacity")

	// ErrMalformedFingerprint rejects input that does not normalize to
	// valid hex.
	ErrMalformedFingerprint = errors.New("malformed fingerprint")

	// ErrStoreUnavailable wraps record-store failures during a forced
	// rebuild; callers may retry.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// RecordSource is the read side of the authoritative record store.
type RecordSource interface {
	ListAll() ([]models.Record, error)
	Count() (int64, error)
}

// Logger is the logging surface the index needs.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

const (
	DefaultCapacity    = 10000
	DefaultM           = 16
	DefaultEfSearch    = 50
	DefaultDriftWindow = 5 * time.Second
)

// Options tunes the index. Zero values take the defaults above. A
// negative DriftWindow disables rate limiting so every query checks
// for drift.
type Options struct {
	Capacity    int
	M           int
	EfSearch    int
	BackupPath  string // optional warm-start snapshot; never authoritative
	DriftWindow time.Duration
	Logger      Logger
}

// Index is a process-private similarity index. Multiple processes each
// hold their own Index and converge independently through drift checks
// against the shared store.
type Index struct {
	// writeMu serializes writers (Insert, Rebuild) against each other
	// so a rebuild never races an in-flight insert. mu guards the
	// searchable state; queries only ever take it shared.
	writeMu      sync.Mutex
	mu           sync.RWMutex
	graph        *hnsw.Graph[int]
	fingerprints map[int]string // ANN label -> fingerprint
	nextID       int
	syncedCount  int64 // store count as of the last reconciliation

	source      RecordSource
	capacity    int
	m           int
	efSearch    int
	backupPath  string
	driftWindow time.Duration
	lastCheck   time.Time
	log         Logger
}

// backupSnapshot is the gob-encoded warm-start file. It only carries
// the label map; the graph is rebuilt from it on load.
type backupSnapshot struct {
	Fingerprints map[int]string
	NextID       int
	SyncedCount  int64
}

// Open builds an index against the given record source. It prefers a
// full rebuild from the store; if the store is unreachable it falls
// back to the backup snapshot, and failing that starts empty and lets
// the next drift check repopulate.
func Open(source RecordSource, opts Options) *Index {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.M <= 0 {
		opts.M = DefaultM
	}
	if opts.EfSearch <= 0 {
		opts.EfSearch = DefaultEfSearch
	}
	if opts.DriftWindow == 0 {
		opts.DriftWindow = DefaultDriftWindow
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	ix := &Index{
		source:      source,
		capacity:    opts.Capacity,
		m:           opts.M,
		efSearch:    opts.EfSearch,
		backupPath:  opts.BackupPath,
		driftWindow: opts.DriftWindow,
		log:         opts.Logger,
	}
	ix.graph = ix.newGraph()
	ix.fingerprints = make(map[int]string)

	if err := ix.Rebuild(); err != nil {
		ix.log.Warnf("cold start rebuild failed: %v", err)
		if ix.backupPath != "" {
			if err := ix.loadBackup(); err != nil {
				ix.log.Warnf("backup load failed, starting empty: %v", err)
			} else {
				ix.log.Infof("index warm-started from backup with %d entries", len(ix.fingerprints))
			}
		}
	}
	return ix
}

func (ix *Index) newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = ix.m
	g.EfSearch = ix.efSearch
	// Euclidean over 0/1 vectors orders candidates like Hamming would
	// (L2² equals the bit difference count), but the score itself is
	// never returned; exact distances are always recomputed.
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Len returns the current element count.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.fingerprints)
}

// Insert adds one fingerprint under a fresh sequential label. The
// caller is expected to have persisted the corresponding record to the
// store already; the index bumps its synchronized count in step so the
// insert alone does not read as drift.
func (ix *Index) Insert(fp string) error {
	if !phash.Valid(fp) {
		short := fp
		if len(short) > 16 {
			short = short[:16] + "..."
		}
		return fmt.Errorf("%w: %q", ErrMalformedFingerprint, short)
	}

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(ix.fingerprints) >= ix.capacity {
		return fmt.Errorf("%w (%d elements)", ErrCapacity, ix.capacity)
	}

	id := ix.nextID
	ix.graph.Add(hnsw.MakeNode(id, phash.ToVector(fp)))
	ix.fingerprints[id] = phash.Normalize(fp)
	ix.nextID++
	ix.syncedCount++

	ix.persistBackupLocked()
	return nil
}

// Query returns the k nearest stored fingerprints to fp, ordered by
// exact Hamming distance ascending. Drift against the store is checked
// (rate-limited) before searching; a mismatch forces a full rebuild. A
// store failure during that rebuild is returned as a retryable
// ErrStoreUnavailable.
func (ix *Index) Query(fp string, k int) ([]models.Match, error) {
	if err := ix.ensureConsistent(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	n := len(ix.fingerprints)
	if n == 0 {
		ix.mu.RUnlock()
		return nil, nil
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		// The ANN search is undefined when asked for more neighbors
		// than exist.
		k = n
	}

	nodes := ix.graph.Search(phash.ToVector(fp), k)
	matches := make([]models.Match, 0, len(nodes))
	for _, node := range nodes {
		stored, ok := ix.fingerprints[node.Key]
		if !ok {
			continue
		}
		dist, skipped := phash.Distance(fp, stored)
		if skipped > 0 {
			ix.log.Warnf("query: %d malformed segment(s) skipped against label %d", skipped, node.Key)
		}
		matches = append(matches, models.Match{Fingerprint: stored, Distance: dist})
	}
	ix.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	return matches, nil
}

// Rebuild forces a full reconciliation against the store. The
// replacement graph is built outside the read lock so concurrent
// queries keep searching the old structure until the swap.
func (ix *Index) Rebuild() error {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	graph, fps, nextID, synced, err := ix.buildReplacement()
	if err != nil {
		return err
	}

	ix.mu.Lock()
	ix.graph = graph
	ix.fingerprints = fps
	ix.nextID = nextID
	ix.syncedCount = synced
	ix.persistBackupLocked()
	ix.mu.Unlock()

	ix.log.Infof("index rebuilt with %d entries", nextID)
	return nil
}

// ensureConsistent compares the synchronized count with the store's
// current record count and rebuilds on mismatch. Checks are rate
// limited to one per drift window so bursty queries that each observe
// drift do not thrash O(n) rebuilds; the window test itself only takes
// the shared lock, so within a window concurrent queries never contend.
func (ix *Index) ensureConsistent() error {
	ix.mu.RLock()
	due := ix.checkDueLocked()
	ix.mu.RUnlock()
	if !due {
		return nil
	}

	ix.mu.Lock()
	if !ix.checkDueLocked() {
		ix.mu.Unlock()
		return nil
	}
	ix.lastCheck = time.Now()
	synced := ix.syncedCount
	ix.mu.Unlock()

	count, err := ix.source.Count()
	if err != nil {
		return fmt.Errorf("%w: counting records: %v", ErrStoreUnavailable, err)
	}
	if count == synced {
		return nil
	}

	ix.log.Infof("drift detected (index synced to %d records, store has %d), rebuilding", synced, count)
	return ix.Rebuild()
}

func (ix *Index) checkDueLocked() bool {
	return ix.driftWindow <= 0 || time.Since(ix.lastCheck) >= ix.driftWindow
}

// buildReplacement lists the store and constructs a fresh graph and
// label map with sequential labels in store order. It touches none of
// the index state, so callers can run it without holding mu; readers
// never observe a half-built structure.
func (ix *Index) buildReplacement() (*hnsw.Graph[int], map[int]string, int, int64, error) {
	records, err := ix.source.ListAll()
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("%w: listing records: %v", ErrStoreUnavailable, err)
	}
	if len(records) > ix.capacity {
		return nil, nil, 0, 0, fmt.Errorf("%w: store holds %d records, capacity is %d", ErrCapacity, len(records), ix.capacity)
	}

	graph := ix.newGraph()
	fps := make(map[int]string, len(records))
	id := 0
	for _, rec := range records {
		switch valid := phash.ValidSegments(rec.Fingerprint); {
		case valid == 0:
			ix.log.Warnf("rebuild: skipping record %s, no decodable segments", rec.ID)
			continue
		case valid < phash.Segments:
			// Partially corrupt legacy rows stay searchable; their bad
			// segments encode as zero bits and contribute no distance.
			ix.log.Warnf("rebuild: record %s has %d malformed segment(s)", rec.ID, phash.Segments-valid)
		}
		fp := phash.Normalize(rec.Fingerprint)
		graph.Add(hnsw.MakeNode(id, phash.ToVector(fp)))
		fps[id] = fp
		id++
	}
	return graph, fps, id, int64(len(records)), nil
}

// persistBackupLocked writes the warm-start snapshot. Best effort: the
// store remains the source of truth, so failures are logged and
// swallowed.
func (ix *Index) persistBackupLocked() {
	if ix.backupPath == "" {
		return
	}
	tmp := ix.backupPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		ix.log.Warnf("index backup: %v", err)
		return
	}
	snap := backupSnapshot{
		Fingerprints: ix.fingerprints,
		NextID:       ix.nextID,
		SyncedCount:  ix.syncedCount,
	}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		os.Remove(tmp)
		ix.log.Warnf("index backup: encoding: %v", err)
		return
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		ix.log.Warnf("index backup: %v", err)
		return
	}
	if err := os.Rename(tmp, ix.backupPath); err != nil {
		os.Remove(tmp)
		ix.log.Warnf("index backup: %v", err)
	}
}

// loadBackup restores the label map from the snapshot and rebuilds the
// graph from it. Only called from Open, before the index is shared.
func (ix *Index) loadBackup() error {
	f, err := os.Open(ix.backupPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var snap backupSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("decoding backup %s: %w", filepath.Base(ix.backupPath), err)
	}

	graph := ix.newGraph()
	for id, fp := range snap.Fingerprints {
		graph.Add(hnsw.MakeNode(id, phash.ToVector(fp)))
	}

	ix.graph = graph
	ix.fingerprints = snap.Fingerprints
	ix.nextID = snap.NextID
	ix.syncedCount = snap.SyncedCount
	return nil
}

// Close flushes the backup snapshot. The index holds no other
// resources.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.persistBackupLocked()
	return nil
}
