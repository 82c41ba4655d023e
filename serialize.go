package microkv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// storeRecord holds the durable fields of a store handle, in the order they
// appear on disk: file path, the ordered key/blob sequence, and the public
// nonce. The password secret is never part of the record.
type storeRecord struct {
	Path    string
	Entries []mapEntry
	Nonce   [NonceSize]byte
}

// The on-disk framing is little-endian uint64 length prefixes in front of
// every variable-length field, matching the layout the store has always
// written. There is no magic number or version byte; a file either parses
// under this layout or fails with SerializationError.

func encodeRecord(rec storeRecord) ([]byte, error) {
	var buf bytes.Buffer

	writeBytes(&buf, []byte(rec.Path))
	var count [8]byte
	binary.LittleEndian.PutUint64(count[:], uint64(len(rec.Entries)))
	buf.Write(count[:])
	for _, e := range rec.Entries {
		writeBytes(&buf, []byte(e.Key))
		writeBytes(&buf, e.Value)
	}
	buf.Write(rec.Nonce[:])

	return buf.Bytes(), nil
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

func decodeRecord(data []byte) (storeRecord, error) {
	var rec storeRecord
	r := bytes.NewReader(data)

	path, err := readBytes(r)
	if err != nil {
		return rec, errSerialization("store file does not parse: path field", err)
	}
	rec.Path = string(path)

	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return rec, errSerialization("store file does not parse: entry count", err)
	}
	if count > uint64(r.Len()) {
		// each entry costs at least two length prefixes
		return rec, errSerialization(fmt.Sprintf("store file does not parse: implausible entry count %d", count), nil)
	}

	rec.Entries = make([]mapEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		key, err := readBytes(r)
		if err != nil {
			return rec, errSerialization(fmt.Sprintf("store file does not parse: key %d", i), err)
		}
		value, err := readBytes(r)
		if err != nil {
			return rec, errSerialization(fmt.Sprintf("store file does not parse: value %d", i), err)
		}
		rec.Entries = append(rec.Entries, mapEntry{Key: string(key), Value: value})
	}

	if _, err := io.ReadFull(r, rec.Nonce[:]); err != nil {
		return rec, errSerialization("store file does not parse: nonce", err)
	}
	if r.Len() != 0 {
		return rec, errSerialization(fmt.Sprintf("store file does not parse: %d trailing bytes", r.Len()), nil)
	}

	return rec, nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > math.MaxInt32 || n > uint64(r.Len()) {
		return nil, fmt.Errorf("length prefix %d exceeds remaining data %d", n, r.Len())
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
