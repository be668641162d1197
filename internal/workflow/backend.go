package workflow

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"

	"github.com/wballard/swissarmyhammer/internal/errs"
)

// Backend persists serialized workflow payloads by key. Filesystem,
// compressed-filesystem and in-memory (memoryBackend) implementations are
// provided.
type Backend interface {
	Save(key string, data []byte) error
	Load(key string) ([]byte, bool, error)
	Delete(key string) error
	List() ([]string, error)
}

// FSBackend stores each key as dir/<key><ext>.
type FSBackend struct {
	dir string
	ext string
}

// NewFSBackend creates a filesystem-backed Backend rooted at dir, storing
// each key as "<key><ext>".
func NewFSBackend(dir, ext string) *FSBackend {
	return &FSBackend{dir: dir, ext: ext}
}

func (b *FSBackend) path(key string) string {
	return filepath.Join(b.dir, key+b.ext)
}

func (b *FSBackend) Save(key string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.path(key)), 0o755); err != nil {
		return errs.Wrap(errs.KindIoFailure, key, err)
	}
	if err := os.WriteFile(b.path(key), data, 0o644); err != nil {
		return errs.Wrap(errs.KindIoFailure, key, err)
	}
	return nil
}

func (b *FSBackend) Load(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errs.Wrap(errs.KindIoFailure, key, err)
	}
	return data, true, nil
}

func (b *FSBackend) Delete(key string) error {
	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.KindIoFailure, key, err)
	}
	return nil
}

func (b *FSBackend) List() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindIoFailure, b.dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) > len(b.ext) && name[len(name)-len(b.ext):] == b.ext {
			out = append(out, name[:len(name)-len(b.ext)])
		}
	}
	return out, nil
}

// compressedSentinel marks a payload as gzip-then-base64 encoded, per
// spec.md §4.4's "sentinel prefix followed by base-64 compressed bytes".
const compressedSentinel = "SAHGZ1:"

// CompressedBackend wraps another Backend, transparently compressing
// payloads before writing and decompressing on read. Readers detect the
// sentinel marker; payloads written by a non-compressed backend (no
// sentinel) still read back unchanged.
type CompressedBackend struct {
	inner Backend
}

// NewCompressedBackend wraps inner with transparent compression.
func NewCompressedBackend(inner Backend) *CompressedBackend {
	return &CompressedBackend{inner: inner}
}

func (c *CompressedBackend) Save(key string, data []byte) error {
	encoded, err := compressPayload(data)
	if err != nil {
		return errs.Wrap(errs.KindIoFailure, key, err)
	}
	return c.inner.Save(key, encoded)
}

func (c *CompressedBackend) Load(key string) ([]byte, bool, error) {
	data, ok, err := c.inner.Load(key)
	if err != nil || !ok {
		return data, ok, err
	}
	out, err := decompressPayload(data)
	if err != nil {
		return nil, true, errs.Wrap(errs.KindCorruption, key, err)
	}
	return out, true, nil
}

// compressPayload gzips data and prefixes it with compressedSentinel,
// base64-encoded so the result stays valid UTF-8 on disk.
func compressPayload(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return []byte(compressedSentinel + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// decompressPayload reverses compressPayload. Data without the sentinel
// prefix is returned unchanged, so readers transparently handle payloads
// written before compression was enabled.
func decompressPayload(data []byte) ([]byte, error) {
	s := string(data)
	if len(s) < len(compressedSentinel) || s[:len(compressedSentinel)] != compressedSentinel {
		return data, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s[len(compressedSentinel):])
	if err != nil {
		return nil, err
	}
	gr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}

func (c *CompressedBackend) Delete(key string) error { return c.inner.Delete(key) }
func (c *CompressedBackend) List() ([]string, error) { return c.inner.List() }

// memoryBackend is an in-memory Backend, used by tests; Store always writes
// through an FSBackend.
type memoryBackend struct {
	data map[string][]byte
}

// NewMemoryBackend creates an in-memory Backend.
func NewMemoryBackend() Backend {
	return &memoryBackend{data: make(map[string][]byte)}
}

func (m *memoryBackend) Save(key string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[key] = cp
	return nil
}

func (m *memoryBackend) Load(key string) ([]byte, bool, error) {
	data, ok := m.data[key]
	return data, ok, nil
}

func (m *memoryBackend) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func (m *memoryBackend) List() ([]string, error) {
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	return out, nil
}
