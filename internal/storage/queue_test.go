package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakazai/jsonsql/internal/types"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable([]types.Column{
		{Name: "id", Type: types.NumberType},
		{Name: "name", Type: types.StringType},
	}, "id", "")
	require.NoError(t, err)
	return tbl
}

func openTest(t *testing.T, root string) *Storage {
	t.Helper()
	s, err := Open(root, &Options{Logger: types.Discard()})
	require.NoError(t, err)
	return s
}

func TestQueueFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), QueueFile)
	q, err := openQueue(path, 10)
	require.NoError(t, err)

	first := newOperation(OpTable, "proj/users.json", []byte(`{"a":1}`), 1)
	second := newOperation(OpPut, "proj/users.json", []byte(`{"a":2}`), 2)
	require.NoError(t, q.append(first))
	require.NoError(t, q.append(second))

	ops, err := q.load()
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, first, ops[0])
	assert.Equal(t, second, ops[1])
	assert.NotEqual(t, ops[0].ID, ops[1].ID)

	require.NoError(t, q.done(1))
	ops, err = q.load()
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, second.ID, ops[0].ID)

	require.NoError(t, q.discard(func(file string) bool { return file == "proj/users.json" }))
	assert.Equal(t, 0, q.len())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
	require.NoError(t, q.close())
}

func TestQueueLoadStopsAtCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), QueueFile)
	q, err := openQueue(path, 10)
	require.NoError(t, err)
	require.NoError(t, q.append(newOperation(OpPut, "p/t.json", []byte("{}"), 1)))
	require.NoError(t, q.append(newOperation(OpPut, "p/t.json", []byte("{}"), 2)))

	// Flip a payload byte of the second frame, then add a torn frame.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	data = append(data, 0x10, 0x00)
	require.NoError(t, os.WriteFile(path, data, 0644))

	ops, err := q.load()
	assert.ErrorIs(t, err, errQueueCorrupted)
	require.Len(t, ops, 1)
	assert.Equal(t, uint64(1), ops[0].Version)
	require.NoError(t, q.close())
}

func TestQueueOnlyPersistsUpToLimit(t *testing.T) {
	q, err := openQueue(filepath.Join(t.TempDir(), QueueFile), 2)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.append(newOperation(OpPut, "p/t.json", nil, uint64(i))))
	}
	assert.True(t, q.full())
	assert.Equal(t, 3, q.len())

	ops, err := q.load()
	require.NoError(t, err)
	assert.Len(t, ops, 2)
	require.NoError(t, q.close())
}

func TestDeferredWritesSurviveCrash(t *testing.T) {
	root := t.TempDir()
	s := openTest(t, root)
	_, err := s.CreateDatabase("proj")
	require.NoError(t, err)
	tbl := testTable(t)
	require.NoError(t, s.CreateTable("proj", "users", tbl))

	// Leave no headroom so the next write stays in the queue.
	s.mu.Lock()
	s.cache.maxBytes = s.cache.bytes
	s.mu.Unlock()

	tbl.Set("1", types.Row{"id": int64(1), "name": "Ann"})
	require.NoError(t, s.PutTable("proj", "users", tbl))
	assert.Equal(t, 1, s.Stats().Pending)

	onDisk, err := os.ReadFile(filepath.Join(root, "proj", "users.json"))
	require.NoError(t, err)
	var stale Table
	require.NoError(t, stale.UnmarshalJSON(onDisk))
	assert.Equal(t, 0, stale.Len())

	got, err := s.GetTable("proj", "users")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	// Crash: drop the process state without syncing.
	require.NoError(t, s.queue.close())

	reopened := openTest(t, root)
	defer reopened.Close()
	assert.Equal(t, 0, reopened.Stats().Pending)
	got, err = reopened.GetTable("proj", "users")
	require.NoError(t, err)
	assert.Equal(t, types.Row{"id": int64(1), "name": "Ann"}, got.Rows["1"])
}

func TestSyncDrainsDeferredWrites(t *testing.T) {
	root := t.TempDir()
	s := openTest(t, root)
	defer s.Close()
	_, err := s.CreateDatabase("proj")
	require.NoError(t, err)
	tbl := testTable(t)
	require.NoError(t, s.CreateTable("proj", "users", tbl))

	s.mu.Lock()
	s.cache.maxBytes = s.cache.bytes
	s.mu.Unlock()

	tbl.Set("7", types.Row{"id": int64(7), "name": "Bob"})
	require.NoError(t, s.PutTable("proj", "users", tbl))
	require.NoError(t, s.Sync())
	assert.Equal(t, 0, s.Stats().Pending)

	onDisk, err := os.ReadFile(filepath.Join(root, "proj", "users.json"))
	require.NoError(t, err)
	want, err := tbl.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(onDisk))
}

func TestWriteThroughDropsOlderQueuedWrites(t *testing.T) {
	root := t.TempDir()
	s := openTest(t, root)
	_, err := s.CreateDatabase("proj")
	require.NoError(t, err)
	tbl := testTable(t)
	require.NoError(t, s.CreateTable("proj", "users", tbl))

	s.mu.Lock()
	s.cache.maxBytes = s.cache.bytes
	s.mu.Unlock()

	tbl.Set("1", types.Row{"id": int64(1), "name": "A"})
	require.NoError(t, s.PutTable("proj", "users", tbl))
	require.Equal(t, 1, s.Stats().Pending)

	// A closed file makes every queue write fail.
	broken, err := os.Create(filepath.Join(t.TempDir(), "broken"))
	require.NoError(t, err)
	require.NoError(t, broken.Close())
	working := s.queue.file
	s.queue.file = broken

	tbl.Set("1", types.Row{"id": int64(1), "name": "B"})
	require.NoError(t, s.PutTable("proj", "users", tbl))
	assert.Equal(t, 0, s.Stats().Pending)
	assert.True(t, s.queue.stale)

	s.queue.file = working
	require.NoError(t, s.Sync())
	assert.False(t, s.queue.stale)
	info, err := os.Stat(filepath.Join(root, QueueFile))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())

	require.NoError(t, s.FlushCache())
	got, err := s.GetTable("proj", "users")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Rows["1"]["name"])

	// Crash and reopen: nothing left in the queue may roll the file back.
	require.NoError(t, s.queue.close())
	reopened := openTest(t, root)
	defer reopened.Close()
	got, err = reopened.GetTable("proj", "users")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Rows["1"]["name"])
}

func TestReplaySkipsDroppedDatabase(t *testing.T) {
	root := t.TempDir()
	q, err := openQueue(filepath.Join(root, QueueFile), 10)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(root, "kept"), 0755))
	require.NoError(t, q.append(newOperation(OpTable, "gone/t.json", []byte(`{"columns":{"a":"STRING"},"data":{}}`), 1)))
	require.NoError(t, q.append(newOperation(OpTable, "kept/t.json", []byte(`{"columns":{"a":"STRING"},"data":{}}`), 1)))
	require.NoError(t, q.close())

	s := openTest(t, root)
	defer s.Close()

	assert.NoDirExists(t, filepath.Join(root, "gone"))
	assert.FileExists(t, filepath.Join(root, "kept", "t.json"))
	tables, err := s.ListTables("kept")
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, tables)

	info, err := os.Stat(filepath.Join(root, QueueFile))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestDropDiscardsQueuedWrites(t *testing.T) {
	root := t.TempDir()
	s := openTest(t, root)
	_, err := s.CreateDatabase("proj")
	require.NoError(t, err)
	require.NoError(t, s.CreateTable("proj", "users", testTable(t)))

	s.mu.Lock()
	s.cache.maxBytes = 1
	s.mu.Unlock()

	require.NoError(t, s.CreateTable("proj", "pending", testTable(t)))
	assert.Equal(t, 1, s.Stats().Pending)
	require.NoError(t, s.DropTable("proj", "pending"))
	assert.Equal(t, 0, s.Stats().Pending)

	require.NoError(t, s.queue.close())
	reopened := openTest(t, root)
	defer reopened.Close()
	assert.False(t, reopened.TableExists("proj", "pending"))
	assert.True(t, reopened.TableExists("proj", "users"))
}

func TestFlusherDrainsQueue(t *testing.T) {
	root := t.TempDir()
	s := openTest(t, root)
	defer s.Close()
	_, err := s.CreateDatabase("proj")
	require.NoError(t, err)
	tbl := testTable(t)
	require.NoError(t, s.CreateTable("proj", "users", tbl))

	s.mu.Lock()
	s.cache.maxBytes = s.cache.bytes
	s.mu.Unlock()
	tbl.Set("3", types.Row{"id": int64(3), "name": "Cid"})
	require.NoError(t, s.PutTable("proj", "users", tbl))
	require.Equal(t, 1, s.Stats().Pending)

	require.NoError(t, s.StartFlusher("* * * * * *"))
	assert.Error(t, s.StartFlusher("* * * * * *"))
	assert.Eventually(t, func() bool { return s.Stats().Pending == 0 }, 5*time.Second, 50*time.Millisecond)
	s.StopFlusher()

	assert.Error(t, s.StartFlusher("not a schedule"))
}

func TestCacheKeyIsStable(t *testing.T) {
	a := cacheKey("/data/proj/users.json")
	assert.Len(t, a, 64)
	assert.Equal(t, a, cacheKey("/data/proj/users.json"))
	assert.NotEqual(t, a, cacheKey("/data/proj/orders.json"))
}
