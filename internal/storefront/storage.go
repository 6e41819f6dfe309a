package storefront

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// CartKey is the storage key of the persisted cart.
const CartKey = "shoppingCart"

// Storage is a small key/value store for client-side state.
type Storage interface {
	// Get returns the value for key. ok is false when the key was never set.
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
}

// MemoryStorage keeps values in memory.
type MemoryStorage struct {
	mu sync.Mutex
	m  map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

// FileStorage stores each key as <dir>/<key>.json.
type FileStorage struct {
	dir string
}

// NewFileStorage returns a FileStorage rooted at dir. The directory is
// created on first write.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (s *FileStorage) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", errors.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

func (s *FileStorage) Get(key string) ([]byte, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "read %s", key)
	}
	return data, true, nil
}

func (s *FileStorage) Set(key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "create storage dir")
	}
	tmp, err := os.CreateTemp(s.dir, "."+key+"-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(err, "write %s", key)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(err, "close %s", key)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(err, "replace %s", key)
	}
	return nil
}

// encodeLines writes the cart snapshot: [{"productId":"..","quantity":N}].
func encodeLines(lines []CartLine) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(l.ProductID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

// decodeLines parses a cart snapshot. Numeric product ids are accepted as
// their decimal text.
func decodeLines(data []byte) ([]CartLine, error) {
	var lines []CartLine
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		var l CartLine
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "productId":
				id, err := decodeID(d)
				if err != nil {
					return errors.Wrap(err, "productId")
				}
				l.ProductID = id
				return nil
			case "quantity":
				q, err := d.Int()
				if err != nil {
					return errors.Wrap(err, "quantity")
				}
				l.Quantity = q
				return nil
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		lines = append(lines, l)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return lines, nil
}

func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}
