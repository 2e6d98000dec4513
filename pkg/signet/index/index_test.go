package index

import (
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signetlabs/signet/pkg/models"
	"github.com/signetlabs/signet/pkg/signet/phash"
)

// fakeSource is an in-memory RecordSource standing in for the
// authoritative store.
type fakeSource struct {
	mu         sync.Mutex
	records    []models.Record
	countErr   error
	listErr    error
	countCalls int
}

func (f *fakeSource) add(fp string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, models.Record{
		ID:          strings.Repeat("0", 8),
		Fingerprint: fp,
	})
}

func (f *fakeSource) ListAll() ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeSource) Count() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.records)), nil
}

func (f *fakeSource) countCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countCalls
}

// randomFingerprint builds a deterministic pseudo-random fingerprint
func randomFingerprint(rng *rand.Rand) string {
	const hexDigits = "0123456789abcdef"
	var sb strings.Builder
	for i := 0; i < phash.CanonicalHexLen; i++ {
		sb.WriteByte(hexDigits[rng.Intn(len(hexDigits))])
	}
	return sb.String()
}

// flipBits returns fp with n leading bits inverted
func flipBits(fp string, n int) string {
	out := []byte(fp)
	for i := 0; i < (n+3)/4; i++ {
		bits := n - i*4
		if bits > 4 {
			bits = 4
		}
		var mask byte
		for b := 0; b < bits; b++ {
			mask |= 1 << (3 - b)
		}
		v := hexVal(out[i]) ^ mask
		out[i] = "0123456789abcdef"[v]
	}
	return string(out)
}

func hexVal(c byte) byte {
	if c >= 'a' {
		return c - 'a' + 10
	}
	return c - '0'
}

// newTestIndex wires an index to a shared fake source with drift rate
// limiting disabled so every query reconciles.
func newTestIndex(t *testing.T, src *fakeSource) *Index {
	t.Helper()
	return Open(src, Options{DriftWindow: -1})
}

// addSynced mimics the registration flow: persist to the store, then
// insert into the index.
func addSynced(t *testing.T, src *fakeSource, ix *Index, fp string) {
	t.Helper()
	src.add(fp)
	require.NoError(t, ix.Insert(fp))
}

func TestInsertAndQuery(t *testing.T) {
	src := &fakeSource{}
	ix := newTestIndex(t, src)
	rng := rand.New(rand.NewSource(1))

	stored := randomFingerprint(rng)
	addSynced(t, src, ix, stored)
	for i := 0; i < 9; i++ {
		addSynced(t, src, ix, randomFingerprint(rng))
	}
	require.Equal(t, 10, ix.Len())

	query := flipBits(stored, 5)
	matches, err := ix.Query(query, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, stored, matches[0].Fingerprint)
	assert.Equal(t, 5, matches[0].Distance, "query must carry the exact Hamming distance, not the ANN score")
}

func TestQueryOrdersByExactDistance(t *testing.T) {
	src := &fakeSource{}
	ix := newTestIndex(t, src)
	rng := rand.New(rand.NewSource(2))

	base := randomFingerprint(rng)
	addSynced(t, src, ix, base)
	addSynced(t, src, ix, flipBits(base, 40))
	addSynced(t, src, ix, flipBits(base, 80))

	matches, err := ix.Query(base, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i-1].Distance, matches[i].Distance)
	}
	assert.Equal(t, 0, matches[0].Distance)
}

func TestQueryEmptyIndex(t *testing.T) {
	src := &fakeSource{}
	ix := newTestIndex(t, src)

	matches, err := ix.Query(strings.Repeat("ab", 96), 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// k larger than the element count must be clamped, never passed through
// to the ANN structure.
func TestQueryClampsK(t *testing.T) {
	src := &fakeSource{}
	ix := newTestIndex(t, src)
	rng := rand.New(rand.NewSource(3))

	addSynced(t, src, ix, randomFingerprint(rng))
	addSynced(t, src, ix, randomFingerprint(rng))

	matches, err := ix.Query(randomFingerprint(rng), 50)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

// Records written to the store out of band must be picked up by the
// next query's drift check.
func TestDriftTriggersRebuild(t *testing.T) {
	src := &fakeSource{}
	ix := newTestIndex(t, src)
	rng := rand.New(rand.NewSource(4))

	stored := randomFingerprint(rng)
	src.add(stored)
	for i := 0; i < 4; i++ {
		src.add(randomFingerprint(rng))
	}
	require.Equal(t, 0, ix.Len(), "index starts behind the store")

	matches, err := ix.Query(stored, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, 5, ix.Len(), "rebuild must converge to the store's record set")
	assert.Equal(t, phash.Normalize(stored), matches[0].Fingerprint)
	assert.Equal(t, 0, matches[0].Distance)
}

func TestCapacityErrorLeavesStateUnchanged(t *testing.T) {
	src := &fakeSource{}
	ix := Open(src, Options{Capacity: 2, DriftWindow: -1})
	rng := rand.New(rand.NewSource(5))

	addSynced(t, src, ix, randomFingerprint(rng))
	addSynced(t, src, ix, randomFingerprint(rng))

	err := ix.Insert(randomFingerprint(rng))
	require.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, 2, ix.Len(), "failed insert must not change the index")
}

func TestInsertRejectsMalformedFingerprint(t *testing.T) {
	src := &fakeSource{}
	ix := newTestIndex(t, src)

	err := ix.Insert(strings.Repeat("z", phash.CanonicalHexLen))
	require.ErrorIs(t, err, ErrMalformedFingerprint)
	assert.Equal(t, 0, ix.Len())
}

func TestStoreUnavailableIsRetryable(t *testing.T) {
	src := &fakeSource{}
	ix := newTestIndex(t, src)
	rng := rand.New(rand.NewSource(6))

	src.countErr = errors.New("connection refused")
	_, err := ix.Query(randomFingerprint(rng), 1)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	// the condition is transient: clearing it lets the next query
	// succeed
	src.countErr = nil
	_, err = ix.Query(randomFingerprint(rng), 1)
	require.NoError(t, err)
}

// Within one drift window only the first query pays for a store count;
// the rest take the fast path.
func TestDriftWindowRateLimitsCountChecks(t *testing.T) {
	src := &fakeSource{}
	rng := rand.New(rand.NewSource(9))
	src.add(randomFingerprint(rng))

	ix := Open(src, Options{DriftWindow: time.Hour})

	for i := 0; i < 5; i++ {
		_, err := ix.Query(randomFingerprint(rng), 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.countCallCount(), "queries inside the window must not re-count the store")
}

// A store that has outgrown the configured capacity makes the
// reconciling rebuild fail; the query surfaces that as ErrCapacity so
// callers can decide how to degrade.
func TestQueryReportsCapacityOverflow(t *testing.T) {
	src := &fakeSource{}
	rng := rand.New(rand.NewSource(10))
	src.add(randomFingerprint(rng))
	src.add(randomFingerprint(rng))

	ix := Open(src, Options{Capacity: 1, DriftWindow: -1})

	_, err := ix.Query(randomFingerprint(rng), 1)
	require.ErrorIs(t, err, ErrCapacity)
}

// Rebuild keeps partially corrupt records searchable but drops rows
// with no decodable segments.
func TestRebuildSkipsFullyMalformedRecords(t *testing.T) {
	src := &fakeSource{}
	rng := rand.New(rand.NewSource(7))

	src.add(randomFingerprint(rng))
	src.add(strings.Repeat("z", phash.CanonicalHexLen))
	src.add(randomFingerprint(rng))

	ix := newTestIndex(t, src)
	assert.Equal(t, 2, ix.Len())
}

// Warm start: when the store is unreachable at open, the index comes up
// from its backup snapshot and reconciles later.
func TestBackupWarmStart(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "index.gob")
	src := &fakeSource{}
	rng := rand.New(rand.NewSource(8))

	ix := Open(src, Options{DriftWindow: -1, BackupPath: backup})
	stored := randomFingerprint(rng)
	addSynced(t, src, ix, stored)
	addSynced(t, src, ix, randomFingerprint(rng))
	require.NoError(t, ix.Close())

	down := &fakeSource{
		countErr: errors.New("store down"),
		listErr:  errors.New("store down"),
	}
	revived := Open(down, Options{DriftWindow: -1, BackupPath: backup})
	assert.Equal(t, 2, revived.Len(), "backup must restore the element set")
}

func TestOpenWithUnreadableBackupStartsEmpty(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "missing.gob")
	down := &fakeSource{
		countErr: errors.New("store down"),
		listErr:  errors.New("store down"),
	}
	ix := Open(down, Options{DriftWindow: -1, BackupPath: backup})
	assert.Equal(t, 0, ix.Len())
}
