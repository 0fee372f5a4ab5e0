package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/boltdb/bolt"
)

var (
	superBucketName = []byte("super")
	blockBucketName = []byte("blocks")
	superBlockKey   = []byte("superblock")
)

// BoltStore is a single-file Storage backend built on a boltdb database: a
// super bucket holding the one super-block record, and a block bucket
// holding every content- or id-addressed block.
type BoltStore struct {
	*base

	db       *bolt.DB
	path     string
	password []byte
}

// NewBoltStore opens (creating if necessary) a bolt-backed store at path.
func NewBoltStore(path string, opts ...Option) (*BoltStore, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(superBucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(blockBucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	return &BoltStore{base: b, db: db, path: path}, nil
}

func (s *BoltStore) IsInitialized() (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(superBucketName).Get(superBlockKey)
		found = v != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) Init(password, payload []byte) error {
	if ok, err := s.IsInitialized(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInit
	}

	raw, err := s.sealNew(password, payload)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(superBucketName).Put(superBlockKey, raw)
	})
	if err != nil {
		return fmt.Errorf("store: write super-block: %w", err)
	}
	s.password = append([]byte(nil), password...)
	return nil
}

func (s *BoltStore) Open(password []byte) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(superBucketName).Get(superBlockKey)
		if v == nil {
			return ErrNotInit
		}
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload, err := s.unseal(password, raw)
	if err != nil {
		return nil, err
	}
	s.password = append([]byte(nil), password...)
	return payload, nil
}

func (s *BoltStore) SavePayload(payload []byte) error {
	var oldRaw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(superBucketName).Get(superBlockKey)
		if v == nil {
			return ErrNotInit
		}
		oldRaw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return err
	}

	raw, err := s.reseal(s.password, oldRaw, payload)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(superBucketName).Put(superBlockKey, raw)
	})
}

func (s *BoltStore) Put(key string, data []byte) error {
	ciphertext, err := s.encryptBlock(key, data)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blockBucketName).Put([]byte(key), ciphertext)
	})
}

func (s *BoltStore) Get(key string) ([]byte, error) {
	return s.decryptBlock(key, func() ([]byte, error) {
		var ciphertext []byte
		err := s.db.View(func(tx *bolt.Tx) error {
			v := tx.Bucket(blockBucketName).Get([]byte(key))
			if v == nil {
				return ErrNotFound
			}
			ciphertext = append([]byte(nil), v...)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return ciphertext, nil
	})
}

func (s *BoltStore) Del(key string) error {
	s.dropCache(key)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blockBucketName).Delete([]byte(key))
	})
}

func (s *BoltStore) Exists(key string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(blockBucketName).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) Flush() error {
	return s.db.Sync()
}

func (s *BoltStore) Destroy() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return fmt.Errorf("store: close bolt db: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: remove bolt db: %w", err)
	}
	return nil
}
