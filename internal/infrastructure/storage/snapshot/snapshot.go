// Package snapshot persists the in-memory stores as zstd-compressed JSON so a
// process running without Postgres keeps its ledger across restarts.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"pantry/internal/infrastructure/storage/memory"
)

// Codec encodes and decodes snapshots.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a snapshot codec.
func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Close releases decoder resources.
func (c *Codec) Close() {
	c.decoder.Close()
}

// Encode writes st to w.
func (c *Codec) Encode(w io.Writer, st *memory.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if _, err := w.Write(c.encoder.EncodeAll(raw, nil)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Decode reads a state written by Encode.
func (c *Codec) Decode(r io.Reader) (*memory.State, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	raw, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var st memory.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &st, nil
}

// Save writes both stores to path atomically (temp file + rename).
func (c *Codec) Save(path string, cat *memory.CatalogStore, led *memory.LedgerStore) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf, memory.Export(cat, led)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load restores both stores from path. A missing file is not an error and
// leaves the stores untouched; found reports whether a snapshot was read.
func (c *Codec) Load(path string, cat *memory.CatalogStore, led *memory.LedgerStore) (found bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	st, err := c.Decode(f)
	if err != nil {
		return false, err
	}
	memory.Restore(st, cat, led)
	return true, nil
}
