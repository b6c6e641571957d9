// Package cache persists expensive intermediate artifacts under typed keys.
//
// A key is any JSON-encodable value. Its digest covers the Go type name and the
// encoded fields, so two key types with identical fields never collide. Keys must
// carry every setting the artifact depends on: a stale entry under a reused key is
// not detected.
package cache

import "crypto/sha256"
import "encoding/gob"
import "encoding/hex"
import "encoding/json"
import "fmt"
import "io"
import "os"
import "path/filepath"

import "github.com/klauspost/compress/zlib"
import "github.com/pkg/errors"
import log "github.com/sirupsen/logrus"

// ErrMiss is returned by Load when no artifact exists under the key
var ErrMiss = errors.New("cache miss")

// Digest hashes the type and JSON encoding of key
func Digest(key interface{}) (string, error) {
	data, err := json.Marshal(key)
	if err != nil {
		return "", errors.Wrap(err, "encode cache key")
	}
	h := sha256.New()
	fmt.Fprintf(h, "%T\n", key)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Store keeps gob encoded, zlib compressed artifacts in one directory
type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Path is the file holding the artifact for key
func (s *Store) Path(key interface{}) (string, error) {
	digest, err := Digest(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, digest+".gob.zlib"), nil
}

func (s *Store) Exists(key interface{}) bool {
	name, err := s.Path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(name)
	return err == nil
}

// Save writes v under key. The file appears atomically.
func (s *Store) Save(key, v interface{}) error {
	name, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return errors.Wrap(err, "create cache directory")
	}
	tmp, err := os.CreateTemp(s.Dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create cache file")
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, v); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write cache %s", name)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		return err
	}
	log.WithFields(log.Fields{"key": fmt.Sprintf("%+v", key), "path": name}).Debug("cache stored")
	return nil
}

func encode(w io.Writer, v interface{}) error {
	zw := zlib.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(v); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Load decodes the artifact under key into v, returning ErrMiss when there is none
func (s *Store) Load(key, v interface{}) error {
	name, err := s.Path(key)
	if err != nil {
		return err
	}
	file, err := os.Open(name)
	if os.IsNotExist(err) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	defer file.Close()

	zr, err := zlib.NewReader(file)
	if err != nil {
		return errors.Wrapf(err, "read cache %s", name)
	}
	defer zr.Close()
	return errors.Wrapf(gob.NewDecoder(zr).Decode(v), "decode cache %s", name)
}
