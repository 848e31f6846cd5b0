// Package overflow is the durable spill path for events that arrive
// while the pool is exhausted or the handoff ring is full. Records
// survive restarts and are drained back out by the drainer job.
package overflow

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type State uint8

const (
	StatePending State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Key         []byte
	Payload     []byte
}

// binary encoding: [state:1][retries:4][lastAttempt:8][keyLen:4][key][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, 1+4+8+4+len(r.Key)+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	binary.BigEndian.PutUint32(buf[13:17], uint32(len(r.Key)))
	copy(buf[17:], r.Key)
	copy(buf[17+len(r.Key):], r.Payload)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) < 17 {
		return Record{}, errors.New("overflow: record too short")
	}
	klen := int(binary.BigEndian.Uint32(b[13:17]))
	if len(b) < 17+klen {
		return Record{}, errors.New("overflow: corrupted key length")
	}
	rec := Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
	}
	if klen > 0 {
		rec.Key = append([]byte(nil), b[17:17+klen]...)
	}
	if len(b) > 17+klen {
		rec.Payload = append([]byte(nil), b[17+klen:]...)
	}
	return rec, nil
}

// -------------------- Journal --------------------

type Journal struct {
	db *pebble.DB
}

func Open(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // spilled events must survive a crash
	})
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// -------------------- API --------------------

// Put inserts a spilled event in PENDING state.
func (j *Journal) Put(seq uint64, key, payload []byte) error {
	rec := Record{
		Seq:     seq,
		State:   StatePending,
		Key:     key,
		Payload: payload,
	}
	return j.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// MarkSent flags a record before the publish attempt, so a crash
// between send and ack is visible on restart.
func (j *Journal) MarkSent(seq uint64) error {
	return j.updateState(seq, StateSent)
}

// MarkAcked flags a record whose publish was confirmed.
func (j *Journal) MarkAcked(seq uint64) error {
	return j.updateState(seq, StateAcked)
}

// Requeue puts a failed send back into PENDING so the next drain pass
// retries it.
func (j *Journal) Requeue(seq uint64) error {
	return j.updateState(seq, StatePending)
}

func (j *Journal) updateState(seq uint64, state State) error {
	rec, err := j.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries++
	rec.LastAttempt = time.Now().UnixNano()
	return j.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// Delete removes an ACKED record.
func (j *Journal) Delete(seq uint64) error {
	return j.db.Delete(keyFor(seq), pebble.Sync)
}

// Get returns the record for a sequence number.
func (j *Journal) Get(seq uint64) (Record, error) {
	val, closer, err := j.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	rec, err := decodeRecord(val)
	if err != nil {
		return Record{}, err
	}
	rec.Seq = seq
	return rec, nil
}

// MaxSeq returns the highest sequence number present, for seeding the
// sequencer on restart. Zero if the journal is empty.
func (j *Journal) MaxSeq() (uint64, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("evt/"),
		UpperBound: []byte("evt/~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// -------------------- Scan --------------------

// ScanByState iterates all records in the given state, in seq order.
// Returning an error from fn stops the scan.
func (j *Journal) ScanByState(
	state State,
	fn func(rec Record) error,
) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("evt/"),
		UpperBound: []byte("evt/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State != state {
			continue
		}

		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec.Seq = seq

		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("evt/%020d", seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte("evt/"))), "%d", &seq)
	return seq, err
}
