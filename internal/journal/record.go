package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
)

const (
	journalMagic   = "OLEDJNL1"
	journalVersion = uint32(1)
	headerSize     = 16 // 8 bytes magic + 4 bytes version + 4 bytes reserved

	// Fixed record overhead: length(4) + sequence(8) + timestamp(8) +
	// nameLen(2) + CRC(8).
	recordOverhead = 30

	maxRecordSize = 10 * 1024 * 1024
)

// writeHeader writes the journal file header.
func (j *Journal) writeHeader() error {
	header := make([]byte, headerSize)
	copy(header[0:8], journalMagic)
	binary.LittleEndian.PutUint32(header[8:12], journalVersion)
	binary.LittleEndian.PutUint32(header[12:16], 0)

	if _, err := j.file.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	return nil
}

// buildRecord constructs a binary record with a trailing CRC64-NVME checksum.
//
// Record format (total: recordOverhead + len(name) + len(payload) bytes):
// - Length (4 bytes, uint32) - total record length including this field
// - Sequence (8 bytes, int64)
// - Timestamp (8 bytes, int64) - Unix milliseconds
// - NameLen (2 bytes, uint16) - event name length
// - Name (variable) - event name
// - Payload (variable) - JSON-encoded event
// - CRC64 (8 bytes, uint64) - checksum of everything after the length field
func buildRecord(sequence, timestamp int64, name string, payload []byte) []byte {
	totalLength := uint32(recordOverhead + len(name) + len(payload))
	buf := new(bytes.Buffer)

	// binary.Write to bytes.Buffer never errors
	_ = binary.Write(buf, binary.LittleEndian, totalLength)
	_ = binary.Write(buf, binary.LittleEndian, sequence)
	_ = binary.Write(buf, binary.LittleEndian, timestamp)
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(name)))
	buf.WriteString(name)
	buf.Write(payload)

	crc := computeCRC64(buf.Bytes()[4:])
	_ = binary.Write(buf, binary.LittleEndian, crc)

	return buf.Bytes()
}

func computeCRC64(data []byte) uint64 {
	h := crc64nvme.New()
	h.Write(data)
	return h.Sum64()
}

// parseRecord decodes the body of a record (everything after the length
// field), validating its checksum.
func parseRecord(body []byte) (Record, error) {
	if len(body) < recordOverhead-4 {
		return Record{}, fmt.Errorf("record too short: %d bytes", len(body))
	}

	storedCRC := binary.LittleEndian.Uint64(body[len(body)-8:])
	computedCRC := computeCRC64(body[:len(body)-8])
	if storedCRC != computedCRC {
		return Record{}, fmt.Errorf("crc mismatch: stored=%x computed=%x", storedCRC, computedCRC)
	}

	sequence := int64(binary.LittleEndian.Uint64(body[0:8]))
	timestamp := int64(binary.LittleEndian.Uint64(body[8:16]))
	nameLen := int(binary.LittleEndian.Uint16(body[16:18]))

	if 18+nameLen > len(body)-8 {
		return Record{}, fmt.Errorf("invalid name length: %d", nameLen)
	}

	name := string(body[18 : 18+nameLen])
	payload := body[18+nameLen : len(body)-8]

	return Record{
		Sequence:  sequence,
		Timestamp: time.UnixMilli(timestamp),
		Event:     name,
		Payload:   json.RawMessage(bytes.Clone(payload)),
	}, nil
}

// scanRecords validates the header then streams every record to fn. The
// caller holds the journal lock; the file position is left at the end of
// the last valid record.
func scanRecords(file *os.File, fn func(Record) error) error {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(file, header); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	if magic := string(header[0:8]); magic != journalMagic {
		return fmt.Errorf("invalid magic: %s", magic)
	}
	if version := binary.LittleEndian.Uint32(header[8:12]); version != journalVersion {
		return fmt.Errorf("unsupported version: %d", version)
	}

	for {
		var length uint32
		if err := binary.Read(file, binary.LittleEndian, &length); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read record length: %w", err)
		}

		if length < recordOverhead || length > maxRecordSize {
			return fmt.Errorf("invalid record length: %d", length)
		}

		body := make([]byte, length-4)
		if _, err := io.ReadFull(file, body); err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}

		rec, err := parseRecord(body)
		if err != nil {
			return err
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
}

// recover scans an existing journal file to restore the next sequence
// number, truncating at the first corrupt record.
func (j *Journal) recover() error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(j.file, header); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	if magic := string(header[0:8]); magic != journalMagic {
		return fmt.Errorf("invalid magic: %s", magic)
	}
	if version := binary.LittleEndian.Uint32(header[8:12]); version != journalVersion {
		return fmt.Errorf("unsupported version: %d", version)
	}

	recordCount := 0

	for {
		offset, err := j.file.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("failed to get position: %w", err)
		}

		var length uint32
		if err := binary.Read(j.file, binary.LittleEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			log.Warn().
				Err(err).
				Int64("offset", offset).
				Msg("Failed to read record length, truncating journal")
			return j.truncateAt(offset)
		}

		if length < recordOverhead || length > maxRecordSize {
			log.Warn().
				Uint32("length", length).
				Int64("offset", offset).
				Msg("Invalid record length, truncating journal")
			return j.truncateAt(offset)
		}

		body := make([]byte, length-4)
		if _, err := io.ReadFull(j.file, body); err != nil {
			log.Warn().
				Err(err).
				Int64("offset", offset).
				Msg("Failed to read record data, truncating journal")
			return j.truncateAt(offset)
		}

		rec, err := parseRecord(body)
		if err != nil {
			log.Warn().
				Err(err).
				Int64("offset", offset).
				Msg("Corrupt record, truncating journal")
			return j.truncateAt(offset)
		}

		recordCount++
		if rec.Sequence >= j.nextSequence {
			j.nextSequence = rec.Sequence + 1
		}
	}

	log.Debug().
		Str("name", j.name).
		Int("records", recordCount).
		Int64("next_sequence", j.nextSequence).
		Msg("Journal recovered")

	return nil
}

// truncateAt discards everything from offset onward and positions the file
// for appending.
func (j *Journal) truncateAt(offset int64) error {
	if err := j.file.Truncate(offset); err != nil {
		return fmt.Errorf("failed to truncate journal: %w", err)
	}
	if _, err := j.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek after truncate: %w", err)
	}
	return nil
}
