// Package container implements the generic save-file framing: a 4-byte
// magic, a container version, then a sequence of keyed records. Consumers
// read the records they know by key and ignore the rest, which keeps old
// binaries forward compatible with saves carrying new record kinds.
package container

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var magic = [4]byte{'T', 'W', 'L', 'D'}

const (
	// Version is the container framing version, not the version of any
	// record body: each record carries its own.
	Version int32 = 1

	maxKeyLen  = 1 << 10
	maxBodyLen = 1 << 30
)

// Record is one keyed blob inside a container.
type Record struct {
	Key     string
	Version int32
	Body    []byte
}

// Write frames records into w.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, Version); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, int32(len(records))); err != nil {
		return err
	}
	for _, rec := range records {
		if len(rec.Key) == 0 || len(rec.Key) > maxKeyLen {
			return fmt.Errorf("container: bad record key length %d", len(rec.Key))
		}
		if len(rec.Body) > maxBodyLen {
			return fmt.Errorf("container: record %q body too large (%d bytes)", rec.Key, len(rec.Body))
		}
		if err := binary.Write(bw, binary.LittleEndian, int32(len(rec.Key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(rec.Key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, rec.Version); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, int32(len(rec.Body))); err != nil {
			return err
		}
		if _, err := bw.Write(rec.Body); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read parses a container, returning every record in file order.
func Read(r io.Reader) ([]Record, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var m [4]byte
	if _, err := io.ReadFull(br, m[:]); err != nil {
		return nil, fmt.Errorf("container: read magic: %w", err)
	}
	if m != magic {
		return nil, fmt.Errorf("container: bad magic %q", m[:])
	}
	var ver int32
	if err := binary.Read(br, binary.LittleEndian, &ver); err != nil {
		return nil, fmt.Errorf("container: read version: %w", err)
	}
	if ver != Version {
		return nil, fmt.Errorf("container: unsupported version %d (want %d)", ver, Version)
	}
	var count int32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("container: read record count: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("container: negative record count %d", count)
	}

	records := make([]Record, 0, count)
	for i := int32(0); i < count; i++ {
		var keyLen int32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return nil, fmt.Errorf("container: record %d key length: %w", i, err)
		}
		if keyLen <= 0 || keyLen > maxKeyLen {
			return nil, fmt.Errorf("container: record %d bad key length %d", i, keyLen)
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return nil, fmt.Errorf("container: record %d key: %w", i, err)
		}
		var rec Record
		rec.Key = string(key)
		if err := binary.Read(br, binary.LittleEndian, &rec.Version); err != nil {
			return nil, fmt.Errorf("container: record %q version: %w", rec.Key, err)
		}
		var bodyLen int32
		if err := binary.Read(br, binary.LittleEndian, &bodyLen); err != nil {
			return nil, fmt.Errorf("container: record %q body length: %w", rec.Key, err)
		}
		if bodyLen < 0 || bodyLen > maxBodyLen {
			return nil, fmt.Errorf("container: record %q bad body length %d", rec.Key, bodyLen)
		}
		rec.Body = make([]byte, bodyLen)
		if _, err := io.ReadFull(br, rec.Body); err != nil {
			return nil, fmt.Errorf("container: record %q body: %w", rec.Key, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Find returns the first record with the given key, or ok=false. Unknown
// keys in a save are simply never asked for.
func Find(records []Record, key string) (Record, bool) {
	for _, rec := range records {
		if rec.Key == key {
			return rec, true
		}
	}
	return Record{}, false
}

// WriteFile writes records to path, creating parent directories.
func WriteFile(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, records)
}

// ReadFile reads every record from the container at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
