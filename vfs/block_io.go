package vfs

import (
	"errors"
	"fmt"

	"github.com/rusty-shelter/rusty-shelter/block"
	"github.com/rusty-shelter/rusty-shelter/store"
)

// putContentAddressed wraps data in an envelope of typ and stores it under
// its own content address, returning that address.
func putContentAddressed(s store.Storage, typ block.Type, data []byte) (block.Address, error) {
	env := block.New(typ, data)
	addr, err := env.Address()
	if err != nil {
		return "", fmt.Errorf("vfs: compute block address: %w", err)
	}
	raw, err := env.Marshal()
	if err != nil {
		return "", fmt.Errorf("vfs: marshal block: %w", err)
	}
	if err := s.Put(string(addr), raw); err != nil {
		return "", err
	}
	return addr, nil
}

// putIDAddressed wraps data in an envelope of typ and stores it under the
// mutable slot id, overwriting whatever was there before.
func putIDAddressed(s store.Storage, id block.ID, typ block.Type, data []byte) error {
	env := block.New(typ, data)
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("vfs: marshal block: %w", err)
	}
	return s.Put(id.String(), raw)
}

// getBlockData fetches and unwraps the envelope stored under key,
// returning its data payload.
func getBlockData(s store.Storage, key string) ([]byte, error) {
	raw, err := s.Get(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	env, err := block.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}
