// Package store implements the pluggable block storage layer: the
// encrypted super-block that holds the key hierarchy and repository
// payload, and the backends (in-memory, file-per-block, and single-file
// boltdb) that persist content-addressed and id-addressed blocks.
package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/rusty-shelter/rusty-shelter/block"
	"github.com/rusty-shelter/rusty-shelter/cipher"
)

var log = logrus.WithField("pkg", "store")

// Sentinel errors shared by every Storage implementation.
var (
	ErrNotFound     = errors.New("store: block not found")
	ErrAlreadyInit  = errors.New("store: already initialized")
	ErrNotInit      = errors.New("store: not initialized")
	ErrAuthFailure  = cipher.ErrAuthFailure
	ErrCorrupt      = block.ErrCorrupt
)

// defaultCacheSize bounds how many ciphertexts the bounded cache keeps
// around. Plaintext is never cached; every Get re-runs decryption.
const defaultCacheSize = 256

// Storage is the pluggable persistence layer a repository is built on. A
// Storage holds exactly one super-block plus an arbitrary number of blocks
// addressed either by content address (immutable) or by block id (mutable
// slot). Implementations must be safe for concurrent use by multiple
// goroutines.
type Storage interface {
	// IsInitialized reports whether a super-block already exists.
	IsInitialized() (bool, error)

	// Init creates a fresh super-block sealed under password, storing
	// payload inside it along with a newly generated data key.
	Init(password, payload []byte) error

	// Open unseals the existing super-block with password and returns the
	// payload stored inside it. Returns ErrAuthFailure on a wrong password.
	Open(password []byte) (payload []byte, err error)

	// SavePayload re-seals the super-block with a new payload, keeping the
	// same key hierarchy.
	SavePayload(payload []byte) error

	// Put stores data under key, encrypting it with the data key.
	Put(key string, data []byte) error

	// Get retrieves and decrypts the block stored under key.
	Get(key string) ([]byte, error)

	// Del removes the block stored under key, if any.
	Del(key string) error

	// Exists reports whether a block is stored under key.
	Exists(key string) (bool, error)

	// Flush persists any buffered writes durably.
	Flush() error

	// Destroy permanently and irrecoverably removes the storage.
	Destroy() error
}

// Option configures the shared base embedded in every Storage
// implementation in this package.
type Option func(*base)

// WithCacheSize overrides the number of ciphertexts the bounded cache
// retains.
func WithCacheSize(n int) Option {
	return func(b *base) { b.cacheSize = n }
}

// WithProvider overrides the cipher provider used to seal the super-block
// and encrypt/decrypt blocks. Defaults to cipher.Default().
func WithProvider(p cipher.Provider) Option {
	return func(b *base) { b.provider = p }
}

// base holds the state and logic shared by every backend in this package:
// the key hierarchy, the super-block codec, and the bounded ciphertext
// cache. Embedding it keeps MemStore/FSStore/BoltStore thin adapters over
// wherever they actually keep bytes.
type base struct {
	mu        sync.RWMutex
	provider  cipher.Provider
	cacheSize int
	cache     *lru.Cache[string, []byte]

	dataKey   cipher.SecretKey
	sb        *superBlock
	hasDataKey bool
}

func newBase(opts []Option) (*base, error) {
	b := &base{
		provider:  cipher.Default(),
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(b)
	}

	cache, err := lru.New[string, []byte](b.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("store: build cache: %w", err)
	}
	b.cache = cache
	return b, nil
}

// encryptBlock encrypts data with the data key, caching the resulting
// ciphertext under key.
func (b *base) encryptBlock(key string, data []byte) ([]byte, error) {
	b.mu.RLock()
	hasKey := b.hasDataKey
	dataKey := b.dataKey
	b.mu.RUnlock()
	if !hasKey {
		return nil, ErrNotInit
	}

	ciphertext, err := b.provider.Encrypt(dataKey, data)
	if err != nil {
		return nil, fmt.Errorf("store: encrypt block %s: %w", key, err)
	}

	log.WithField("cid", key).WithField("op", "put").Debug("encrypted block")
	b.cache.Add(key, ciphertext)
	return ciphertext, nil
}

// decryptBlock decrypts the block stored under key. It checks the bounded
// ciphertext cache first; on a miss it calls fetch to read the backend and
// fills the cache for next time. Plaintext itself is never cached.
func (b *base) decryptBlock(key string, fetch func() ([]byte, error)) ([]byte, error) {
	b.mu.RLock()
	hasKey := b.hasDataKey
	dataKey := b.dataKey
	b.mu.RUnlock()
	if !hasKey {
		return nil, ErrNotInit
	}

	ciphertext, ok := b.cachedCiphertext(key)
	if ok {
		log.WithField("cid", key).WithField("op", "get").Debug("served from cache")
	} else {
		var err error
		ciphertext, err = fetch()
		if err != nil {
			return nil, err
		}
		b.cache.Add(key, ciphertext)
	}

	plaintext, err := b.provider.Decrypt(dataKey, ciphertext)
	if err != nil {
		log.WithField("cid", key).WithField("op", "get").Warn("authentication failed")
		return nil, ErrAuthFailure
	}
	return plaintext, nil
}

func (b *base) cachedCiphertext(key string) ([]byte, bool) {
	return b.cache.Get(key)
}

func (b *base) dropCache(key string) {
	b.cache.Remove(key)
}

// sealNew builds a fresh super-block sealed under password, remembers its
// data key, and returns the bytes to persist.
func (b *base) sealNew(password, payload []byte) ([]byte, error) {
	sb, err := newSuperBlock(b.provider)
	if err != nil {
		return nil, err
	}

	var dataKey cipher.SecretKey
	if _, err := io.ReadFull(rand.Reader, dataKey[:]); err != nil {
		return nil, fmt.Errorf("store: generate data key: %w", err)
	}
	sb.dataKey = dataKey
	sb.payload = payload

	masterKey := sb.masterKey(b.provider, password)
	defer masterKey.Zero()

	raw, err := sb.marshal(b.provider, masterKey)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.dataKey = dataKey
	b.hasDataKey = true
	b.mu.Unlock()

	log.WithField("op", "init").Info("sealed new super-block")
	return raw, nil
}

// unseal opens an existing super-block's raw bytes with password, remembers
// its data key, and returns the payload it carried.
func (b *base) unseal(password, raw []byte) ([]byte, error) {
	sb, bodyCiphertext, err := deserializeSuperBlock(raw)
	if err != nil {
		return nil, err
	}
	if sb.code != b.provider.Code() {
		return nil, fmt.Errorf("store: %w: unexpected cipher code 0x%x", ErrCorrupt, uint32(sb.code))
	}

	masterKey := sb.masterKey(b.provider, password)
	defer masterKey.Zero()

	if err := sb.unsealBody(b.provider, masterKey, bodyCiphertext); err != nil {
		log.WithField("op", "open").Warn("super-block unseal failed")
		return nil, err
	}

	b.mu.Lock()
	b.dataKey = sb.dataKey
	b.hasDataKey = true
	b.mu.Unlock()

	log.WithField("op", "open").Info("unsealed super-block")

	return sb.payload, nil
}

// reseal re-marshals a super-block with a new payload but the same key
// hierarchy, keyed off the already-unsealed data key.
func (b *base) reseal(password, oldRaw, payload []byte) ([]byte, error) {
	sb, _, err := deserializeSuperBlock(oldRaw)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	sb.dataKey = b.dataKey
	b.mu.RUnlock()
	sb.payload = payload

	masterKey := sb.masterKey(b.provider, password)
	defer masterKey.Zero()

	return sb.marshal(b.provider, masterKey)
}
