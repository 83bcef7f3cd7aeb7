// Package snapshot reads and writes JSON record files. Paths ending in .zst
// are zstd-compressed.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/yash/flightvectors/internal/metrics"
	"github.com/yash/flightvectors/pkg/models"
)

// ZstdExt marks a compressed record file.
const ZstdExt = ".zst"

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Compressed reports whether path names a zstd file.
func Compressed(path string) bool {
	return strings.HasSuffix(path, ZstdExt)
}

// ReadVectors loads a JSON array of raw records from path.
func ReadVectors(path string) ([]models.StateVector, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	var vectors []models.StateVector
	if err := json.Unmarshal(data, &vectors); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	metrics.FileLoads.Inc()
	metrics.RecordsReceived.Add(int64(len(vectors)))
	return vectors, nil
}

// ReadFile returns the contents of path, decompressing .zst files.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening record file: %w", err)
	}
	defer f.Close()

	if !Compressed(path) {
		return io.ReadAll(f)
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return data, nil
}

// WriteJSON writes v to path as indented JSON.
func WriteJSON(path string, v interface{}) error {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}

	data := buf.Bytes()
	if Compressed(path) {
		var err error
		if data, err = CompressBytes(data); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// CompressBytes zstd-compresses data.
func CompressBytes(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// FileSource serves raw vectors from a file on every call.
type FileSource struct {
	Path string
}

// Vectors implements the pipeline's fallback source.
func (f FileSource) Vectors(_ context.Context) ([]models.StateVector, error) {
	return ReadVectors(f.Path)
}
