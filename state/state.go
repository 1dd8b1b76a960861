// state/state.go
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pivot_curve_bot/logs"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// --- 1. Define Interface ---

// Document is the generic structured value exchanged with storage.
type Document = map[string]interface{}

// Storage persists the latest document of one logical name.
// It knows nothing about what the document contains.
type Storage interface {
	// Store saves a new version. Earlier versions survive a failed or interrupted write.
	Store(data Document) error
	// Load returns the most recent version that can still be decoded.
	Load() (Document, error)
}

// ErrNoSnapshot is returned by Load when no readable version exists.
var ErrNoSnapshot = errors.New("no stored snapshot")

// Format selects the serialization of stored snapshots.
type Format int

const (
	JSON       Format = iota // Compact JSON
	JSONPretty               // Indented JSON
	BinJSON                  // MessagePack
)

// ParseFormat maps a config name to a Format.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "json":
		return JSON, nil
	case "jsonp":
		return JSONPretty, nil
	case "binjson":
		return BinJSON, nil
	}
	return JSON, fmt.Errorf("unknown storage format '%s'", name)
}

func (f Format) extension() string {
	if f == BinJSON {
		return ".bin"
	}
	return ".json"
}

// --- 2. Snapshot Envelope ---

// snapshot wraps every stored document with identity and ordering metadata.
type snapshot struct {
	ID      string    `json:"id" msgpack:"id"`
	Seq     uint64    `json:"seq" msgpack:"seq"`
	SavedAt time.Time `json:"saved_at" msgpack:"saved_at"`
	Data    Document  `json:"data" msgpack:"data"`
}

func encode(format Format, snap *snapshot) ([]byte, error) {
	switch format {
	case JSONPretty:
		return json.MarshalIndent(snap, "", "  ")
	case BinJSON:
		return msgpack.Marshal(snap)
	default:
		return json.Marshal(snap)
	}
}

func decode(format Format, data []byte) (*snapshot, error) {
	var snap snapshot
	var err error
	if format == BinJSON {
		err = msgpack.Unmarshal(data, &snap)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(&snap)
	}
	if err != nil {
		return nil, err
	}
	if snap.ID == "" || snap.Data == nil {
		return nil, errors.New("snapshot envelope is incomplete")
	}
	return &snap, nil
}

// --- 3. File Implementation ---

// FileStorage keeps the N most recent versions of one document:
// <file> is the latest, <file>.1 the one before, up to <file>.N-1.
type FileStorage struct {
	mu       sync.Mutex
	file     string
	versions int
	format   Format
	seq      uint64
}

// NewFileStorage creates a rotating storage. versions below 1 are treated as 1.
func NewFileStorage(file string, versions int, format Format) *FileStorage {
	if versions < 1 {
		versions = 1
	}
	return &FileStorage{file: file, versions: versions, format: format}
}

// Path returns the location of the latest version.
func (s *FileStorage) Path() string {
	return s.file
}

func (s *FileStorage) versionPath(i int) string {
	if i == 0 {
		return s.file
	}
	return fmt.Sprintf("%s.%d", s.file, i)
}

// stagedPath holds a complete new version that has not been rotated into place yet.
func (s *FileStorage) stagedPath() string {
	return s.file + ".next"
}

// Store stages the new version next to the latest one, shifts the older
// versions and then moves the staged file into place. The staged file is
// readable by Load, so an interrupted store never leaves fewer versions.
func (s *FileStorage) Store(data Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	// Finish a store interrupted after staging so its version is not overwritten.
	if _, err := os.Stat(s.stagedPath()); err == nil {
		logs.Warnf("[Storage] Completing interrupted store of %s", s.file)
		if err := s.install(); err != nil {
			return err
		}
	}
	if err := s.stage(data); err != nil {
		return err
	}
	return s.install()
}

// stage writes the new version to a temp file and renames it to the staged path.
func (s *FileStorage) stage(data Document) error {
	snap := &snapshot{
		ID:      uuid.NewString(),
		Seq:     s.seq + 1,
		SavedAt: time.Now().UTC(),
		Data:    data,
	}
	payload, err := encode(s.format, snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for saving: %w", err)
	}

	dir := filepath.Dir(s.file)
	tmpPath, err := writeTemp(dir, payload)
	if err != nil {
		return fmt.Errorf("failed to write temporary snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.stagedPath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to stage snapshot: %w", err)
	}
	syncDir(dir)
	s.seq = snap.Seq
	return nil
}

// rotate shifts every existing version one slot older, dropping the oldest.
func (s *FileStorage) rotate() error {
	for i := s.versions - 1; i >= 1; i-- {
		src := s.versionPath(i - 1)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, s.versionPath(i)); err != nil {
			return fmt.Errorf("failed to rotate snapshot %s: %w", src, err)
		}
	}
	return nil
}

// install rotates the versions and moves the staged file into the latest slot.
func (s *FileStorage) install() error {
	if err := s.rotate(); err != nil {
		return err
	}
	if err := os.Rename(s.stagedPath(), s.file); err != nil {
		return fmt.Errorf("failed to install snapshot: %w", err)
	}
	syncDir(filepath.Dir(s.file))
	return nil
}

// Load walks the versions from newest to oldest and returns the first readable one.
func (s *FileStorage) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, s.versions+1)
	paths = append(paths, s.stagedPath())
	for i := 0; i < s.versions; i++ {
		paths = append(paths, s.versionPath(i))
	}
	for i, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				logs.Warnf("[Storage] Unable to read snapshot %s: %v", path, err)
			}
			continue
		}
		snap, err := decode(s.format, raw)
		if err != nil {
			logs.Warnf("[Storage] Skipping unreadable snapshot %s: %v", path, err)
			continue
		}
		if snap.Seq > s.seq {
			s.seq = snap.Seq
		}
		if i > 1 {
			logs.Warnf("[Storage] Latest snapshot unavailable, restored version %d (%s).", i-1, path)
		}
		return snap.Data, nil
	}
	return nil, ErrNoSnapshot
}

// writeTemp writes data to a new temp file in dir and fsyncs it.
func writeTemp(dir string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// syncDir is a best-effort fsync of the parent directory so the rename survives a crash.
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}

// --- 4. Factory ---

// Factory creates storages that share a directory, version count and format.
type Factory struct {
	path     string
	versions int
	format   Format
}

// NewFactory creates a storage factory.
func NewFactory(path string, versions int, format Format) *Factory {
	return &Factory{path: path, versions: versions, format: format}
}

// Create returns the storage for a logical name.
func (f *Factory) Create(name string) *FileStorage {
	return NewFileStorage(filepath.Join(f.path, name+f.format.extension()), f.versions, f.format)
}
