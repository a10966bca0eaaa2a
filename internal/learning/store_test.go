package learning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"t9d/internal/t9"
)

// failingBackend fails every call with err until err is cleared.
type failingBackend struct {
	*MemoryBackend
	readErr  error
	writeErr error
	writes   int
}

func (f *failingBackend) Read(lang string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.MemoryBackend.Read(lang)
}

func (f *failingBackend) Write(lang string, data []byte) error {
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.MemoryBackend.Write(lang, data)
}

func TestStoreRecord(t *testing.T) {
	s := NewStore("en", NewMemoryBackend(), nil, nil, nil)

	count, seq := s.Boost("cat")
	assert.Zero(t, count)
	assert.Zero(t, seq)

	e := s.Record("cat")
	assert.Equal(t, uint64(1), e.Count)
	assert.Equal(t, uint64(1), e.LastSeq)

	s.Record("dog")
	e = s.Record("Cat")
	assert.Equal(t, uint64(2), e.Count)
	assert.Equal(t, uint64(3), e.LastSeq)

	count, seq = s.Boost("CAT")
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, uint64(3), seq)
	assert.Equal(t, 2, s.Len())
}

func TestStoreRecordIgnoresBlank(t *testing.T) {
	s := NewStore("en", NewMemoryBackend(), nil, nil, nil)
	assert.Equal(t, Entry{}, s.Record("   "))
	assert.Zero(t, s.Len())
	assert.False(t, s.Dirty())
}

func TestStoreSharedClock(t *testing.T) {
	clock := &Clock{}
	en := NewStore("en", nil, clock, nil, nil)
	sv := NewStore("sv", nil, clock, nil, nil)

	en.Record("cat")
	sv.Record("bat")
	en.Record("dog")

	_, catSeq := en.Boost("cat")
	_, batSeq := sv.Boost("bat")
	_, dogSeq := en.Boost("dog")
	assert.Less(t, catSeq, batSeq)
	assert.Less(t, batSeq, dogSeq)
	assert.Equal(t, uint64(3), clock.Now())
}

func TestStoreLookup(t *testing.T) {
	s := NewStore("en", nil, nil, nil, nil)
	s.Record("cat")
	s.Record("act")
	s.Record("bat")
	s.Record("dog")

	assert.Equal(t, []string{"act", "bat", "cat"}, s.Lookup("228"))
	assert.Equal(t, []string{"dog"}, s.Lookup("364"))
	assert.Empty(t, s.Lookup("999"))
}

func TestStoreLookupSkipsUnmappable(t *testing.T) {
	s := NewStore("en", nil, nil, nil, nil)
	s.Record("don't")

	assert.Equal(t, 1, s.Len())
	for _, bucket := range []t9.DigitKey{"366", "3668"} {
		assert.Empty(t, s.Lookup(bucket))
	}
}

func TestStoreFlushAndLoad(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewStore("sv", backend, nil, nil, nil)
	s.Record("hej")
	s.Record("hej")
	s.Record("då")
	require.True(t, s.Dirty())
	assert.Equal(t, 3, s.Pending())

	require.NoError(t, s.Flush())
	assert.False(t, s.Dirty())

	clock := &Clock{}
	loaded := NewStore("sv", backend, clock, nil, nil)
	require.NoError(t, loaded.Load())

	count, seq := loaded.Boost("hej")
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, []string{"då"}, loaded.Lookup("32"))

	// The clock resumes after the highest stored sequence number.
	assert.Equal(t, uint64(3), clock.Now())
	assert.Equal(t, uint64(4), loaded.Record("ja").LastSeq)
}

func TestStoreFlushIdempotent(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend()}
	s := NewStore("en", backend, nil, nil, nil)

	require.NoError(t, s.Flush())
	assert.Zero(t, backend.writes, "clean store must not write")

	s.Record("cat")
	require.NoError(t, s.Flush())
	require.NoError(t, s.Flush())
	assert.Equal(t, 1, backend.writes)
}

func TestStoreLoadMissing(t *testing.T) {
	s := NewStore("en", NewMemoryBackend(), nil, nil, nil)
	err := s.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoStoredData)
	assert.NotErrorIs(t, err, ErrPersistenceRead)
	assert.Contains(t, err.Error(), "en")
	assert.Zero(t, s.Len())
}

func TestStoreLoadMergesCaseVariants(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Write("en", []byte(`{
		"Cat": {"count": 2, "last_seq": 9},
		"cat": {"count": 3, "last_seq": 4},
		"dog": 1
	}`)))

	for i := 0; i < 20; i++ {
		s := NewStore("en", backend, nil, nil, nil)
		require.NoError(t, s.Load())
		require.Equal(t, 2, s.Len())

		count, seq := s.Boost("cat")
		assert.Equal(t, uint64(5), count)
		assert.Equal(t, uint64(9), seq)
		assert.Equal(t, []string{"cat"}, s.Lookup("228"))
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Write("en", []byte(`{"cat": {"count": -1}`)))

	s := NewStore("en", backend, nil, nil, nil)
	err := s.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistenceRead)
	assert.Zero(t, s.Len())

	// The store is still usable.
	s.Record("cat")
	count, _ := s.Boost("cat")
	assert.Equal(t, uint64(1), count)
}

func TestStoreLoadReadFailure(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend(), readErr: errors.New("disk gone")}
	s := NewStore("en", backend, nil, nil, nil)

	err := s.Load()
	assert.ErrorIs(t, err, ErrPersistenceRead)
	assert.Zero(t, s.Len())
}

func TestStoreWriteFailureRetries(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend(), writeErr: errors.New("read-only fs")}
	s := NewStore("en", backend, nil, nil, nil)
	s.Record("cat")

	err := s.Flush()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistenceWrite)
	assert.True(t, s.Dirty(), "failed flush keeps the store dirty")

	count, _ := s.Boost("cat")
	assert.Equal(t, uint64(1), count, "memory state stays authoritative")

	backend.writeErr = nil
	require.NoError(t, s.Flush())
	assert.False(t, s.Dirty())

	data, err := backend.MemoryBackend.Read("en")
	require.NoError(t, err)
	entries, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), entries["cat"].Count)
}

func TestStoreRecordNotifies(t *testing.T) {
	s := NewStore("en", nil, nil, nil, nil)
	calls := 0
	s.setNotify(func() { calls++ })

	s.Record("cat")
	s.Record("dog")
	assert.Equal(t, 2, calls)
}

func TestClockObserve(t *testing.T) {
	c := &Clock{}
	c.Observe(10)
	assert.Equal(t, uint64(10), c.Now())
	c.Observe(3)
	assert.Equal(t, uint64(10), c.Now())
	assert.Equal(t, uint64(11), c.Next())
}
