// Package dna reads and writes controller parameter vectors as flat files of
// fixed-size records. Each record is the little-endian float32 encoding of one
// individual's parameters; record i belongs to population slot i.
package dna

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const floatSize = 4

type DNA []float32

// ConfigurationError reports a parameter vector whose size does not match the
// controller architecture.
type ConfigurationError struct {
	Path          string
	RecordBytes   int
	FileBytes     int64
	ExpectedCount int
	ActualCount   int
}

func (e *ConfigurationError) Error() string {
	if e.ExpectedCount > 0 || e.ActualCount > 0 {
		return fmt.Sprintf("dna parameter count mismatch: got=%d want=%d", e.ActualCount, e.ExpectedCount)
	}
	return fmt.Sprintf("dna file %s: size %d is not a multiple of record size %d", e.Path, e.FileBytes, e.RecordBytes)
}

// RecordBytes returns the on-disk size of one record for a parameter count.
func RecordBytes(parameterCount int) int {
	return parameterCount * floatSize
}

// Count returns how many complete records path holds.
func Count(path string, recordBytes int) (int, error) {
	if recordBytes <= 0 || recordBytes%floatSize != 0 {
		return 0, fmt.Errorf("invalid record size %d", recordBytes)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size%int64(recordBytes) != 0 {
		return 0, &ConfigurationError{Path: path, RecordBytes: recordBytes, FileBytes: size}
	}
	return int(size / int64(recordBytes)), nil
}

// LoadAt reads record index from path.
func LoadAt(path string, recordBytes, index int) (DNA, error) {
	if index < 0 {
		return nil, fmt.Errorf("invalid record index %d", index)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, recordBytes)
	if _, err := f.ReadAt(buf, int64(index)*int64(recordBytes)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("record %d beyond end of %s", index, path)
		}
		return nil, err
	}
	return decode(buf), nil
}

// LoadAll reads at most limit records (limit <= 0 reads every record).
func LoadAll(path string, recordBytes, limit int) ([]DNA, error) {
	count, err := Count(path, recordBytes)
	if err != nil {
		return nil, err
	}
	if limit > 0 && count > limit {
		count = limit
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	out := make([]DNA, 0, count)
	buf := make([]byte, recordBytes)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(reader, buf); err != nil {
			return nil, fmt.Errorf("read record %d: %w", i, err)
		}
		out = append(out, decode(buf))
	}
	return out, nil
}

// WriteAll replaces path with the given records. Every record must have the
// same length.
func WriteAll(path string, records []DNA) error {
	if len(records) > 0 {
		want := len(records[0])
		for _, r := range records {
			if len(r) != want {
				return &ConfigurationError{Path: path, ExpectedCount: want, ActualCount: len(r)}
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	buf := make([]byte, floatSize)
	for _, r := range records {
		for _, v := range r {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := w.Write(buf); err != nil {
				_ = f.Close()
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func decode(buf []byte) DNA {
	out := make(DNA, len(buf)/floatSize)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*floatSize:]))
	}
	return out
}
