package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// QueueFile is the name of the pending-operation log inside the storage root
const QueueFile = ".queue"

// OpKind tells which storage call produced a pending operation
type OpKind string

const (
	OpPut   OpKind = "put"
	OpTable OpKind = "table"
)

// Operation is one pending write: the full content of a table file.
// Applying it twice has the same effect as applying it once.
type Operation struct {
	ID        string `msgpack:"id"`
	Kind      OpKind `msgpack:"kind"`
	File      string `msgpack:"file"` // relative to the storage root
	Data      []byte `msgpack:"data"`
	Version   uint64 `msgpack:"version"`
	Timestamp int64  `msgpack:"ts"`
}

func newOperation(kind OpKind, file string, data []byte, version uint64) *Operation {
	return &Operation{
		ID:        uuid.NewString(),
		Kind:      kind,
		File:      file,
		Data:      data,
		Version:   version,
		Timestamp: time.Now().UnixNano(),
	}
}

// frameHeader is [length:4][crc32:4], little endian
const frameHeader = 8

var errQueueCorrupted = errors.New("queue record is corrupted")

// opQueue keeps pending operations in memory and mirrors them into the queue
// file while there are at most limit of them.
type opQueue struct {
	path    string
	file    *os.File
	limit   int
	pending []*Operation
	// stale is set when the file may no longer match pending
	stale bool
}

func openQueue(path string, limit int) (*opQueue, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue file: %w", err)
	}
	return &opQueue{path: path, file: file, limit: limit}, nil
}

func (q *opQueue) len() int {
	return len(q.pending)
}

func (q *opQueue) full() bool {
	return len(q.pending) >= q.limit
}

// append adds op to the pending list and persists it if the file is under its limit
func (q *opQueue) append(op *Operation) error {
	q.pending = append(q.pending, op)
	if q.stale {
		return q.rewrite()
	}
	if len(q.pending) > q.limit {
		return nil
	}
	if err := q.write(op); err != nil {
		q.stale = true
		return err
	}
	return q.file.Sync()
}

func (q *opQueue) write(op *Operation) error {
	payload, err := msgpack.Marshal(op)
	if err != nil {
		return err
	}
	frame := make([]byte, frameHeader+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(payload))
	copy(frame[frameHeader:], payload)
	_, err = q.file.Write(frame)
	return err
}

// load reads the persisted operations. Reading stops at the first torn or
// corrupted frame; everything before it is returned.
func (q *opQueue) load() ([]*Operation, error) {
	f, err := os.Open(q.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ops []*Operation
	r := bufio.NewReader(f)
	for {
		op, err := readFrame(r)
		if err == io.EOF {
			return ops, nil
		}
		if err != nil {
			return ops, err
		}
		ops = append(ops, op)
	}
}

func readFrame(r io.Reader) (*Operation, error) {
	header := make([]byte, frameHeader)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errQueueCorrupted
		}
		return nil, err
	}
	payload := make([]byte, binary.LittleEndian.Uint32(header[0:4]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errQueueCorrupted
	}
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(header[4:8]) {
		return nil, errQueueCorrupted
	}
	var op Operation
	if err := msgpack.Unmarshal(payload, &op); err != nil {
		return nil, fmt.Errorf("%w: %v", errQueueCorrupted, err)
	}
	return &op, nil
}

// rewrite replaces the file content with the current pending list
func (q *opQueue) rewrite() error {
	q.stale = true
	if err := q.file.Truncate(0); err != nil {
		return err
	}
	for i, op := range q.pending {
		if i >= q.limit {
			break
		}
		if err := q.write(op); err != nil {
			return err
		}
	}
	if err := q.file.Sync(); err != nil {
		return err
	}
	q.stale = false
	return nil
}

// done drops the first n pending operations
func (q *opQueue) done(n int) error {
	q.pending = q.pending[n:]
	return q.rewrite()
}

// discard drops pending operations whose file matches
func (q *opQueue) discard(match func(file string) bool) error {
	kept := q.pending[:0]
	for _, op := range q.pending {
		if !match(op.File) {
			kept = append(kept, op)
		}
	}
	if len(kept) == len(q.pending) {
		return nil
	}
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = kept
	return q.rewrite()
}

func (q *opQueue) close() error {
	return q.file.Close()
}
