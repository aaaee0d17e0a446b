package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

const (
	keyLibrary     = "voiceforge_library"
	keySettings    = "voiceforge_settings"
	keyCredentials = "voiceforge_api_keys"
)

// BadgerStore keeps the whole library as one zstd-compressed JSON array
// under a fixed key, with settings and credentials under their own keys.
type BadgerStore struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create library directory: %w", err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &BadgerStore{db: db, enc: enc, dec: dec}, nil
}

func (s *BadgerStore) ListClips(_ context.Context) ([]Clip, error) {
	var clips []Clip
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		clips, err = s.readClips(txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(clips)
	return clips, nil
}

func (s *BadgerStore) GetClip(ctx context.Context, id string) (Clip, error) {
	clips, err := s.ListClips(ctx)
	if err != nil {
		return Clip{}, err
	}
	for _, c := range clips {
		if c.ID == id {
			return c, nil
		}
	}
	return Clip{}, ErrNotFound
}

func (s *BadgerStore) PutClips(_ context.Context, clips []Clip) error {
	return s.db.Update(func(txn *badger.Txn) error {
		current, err := s.readClips(txn)
		if err != nil {
			return err
		}
		byID := make(map[string]int, len(current))
		for i, c := range current {
			byID[c.ID] = i
		}
		for _, c := range clips {
			if i, ok := byID[c.ID]; ok {
				current[i] = c
				continue
			}
			byID[c.ID] = len(current)
			current = append(current, c)
		}
		return s.writeClips(txn, current)
	})
}

func (s *BadgerStore) DeleteClips(_ context.Context, ids []string) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	return s.db.Update(func(txn *badger.Txn) error {
		current, err := s.readClips(txn)
		if err != nil {
			return err
		}
		kept := current[:0]
		for _, c := range current {
			if _, ok := drop[c.ID]; !ok {
				kept = append(kept, c)
			}
		}
		return s.writeClips(txn, kept)
	})
}

func (s *BadgerStore) LoadSettings(_ context.Context) (AppSettings, error) {
	settings := DefaultAppSettings()
	if err := s.getJSON(keySettings, &settings); err != nil {
		return AppSettings{}, err
	}
	return settings, nil
}

func (s *BadgerStore) SaveSettings(_ context.Context, settings AppSettings) error {
	return s.setJSON(keySettings, settings)
}

func (s *BadgerStore) LoadCredentials(_ context.Context) (Credentials, error) {
	var creds Credentials
	if err := s.getJSON(keyCredentials, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func (s *BadgerStore) SaveCredentials(_ context.Context, creds Credentials) error {
	return s.setJSON(keyCredentials, creds)
}

func (s *BadgerStore) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

func (s *BadgerStore) readClips(txn *badger.Txn) ([]Clip, error) {
	item, err := txn.Get([]byte(keyLibrary))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	var clips []Clip
	err = item.Value(func(val []byte) error {
		raw, err := s.dec.DecodeAll(val, nil)
		if err != nil {
			return fmt.Errorf("decompress library: %w", err)
		}
		return json.Unmarshal(raw, &clips)
	})
	if err != nil {
		return nil, fmt.Errorf("decode library: %w", err)
	}
	return clips, nil
}

func (s *BadgerStore) writeClips(txn *badger.Txn, clips []Clip) error {
	if clips == nil {
		clips = []Clip{}
	}
	raw, err := json.Marshal(clips)
	if err != nil {
		return fmt.Errorf("encode library: %w", err)
	}
	return txn.Set([]byte(keyLibrary), s.enc.EncodeAll(raw, nil))
}

func (s *BadgerStore) getJSON(key string, dst any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dst)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}
