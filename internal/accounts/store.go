package accounts

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.etcd.io/bbolt"

	"telegram-bridge/internal/infra/storage"
)

var bucketAccounts = []byte("accounts")

// Store — аккаунты в bbolt, по записи JSON на ключ big-endian id.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open открывает (или создаёт) базу аккаунтов.
func Open(path string) (*Store, error) {
	if err := storage.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("ensure accounts db dir: %w", err)
	}
	db, err := bbolt.Open(path, storage.DefaultFilePerm, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open accounts db")
	}
	s, err := NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore работает поверх уже открытой базы; Store.Close закрывает её.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAccounts)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "create accounts bucket")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close закрывает базу.
func (s *Store) Close() error { return s.db.Close() }

func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id)) //nolint:gosec // id всегда положительный
	return b
}

// Save создаёт аккаунт (Key == 0 — новый id из последовательности) или
// перезаписывает существующий.
func (s *Store) Save(a *Account) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		now := s.now().UTC()
		if a.Key == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return errors.Wrap(err, "next account id")
			}
			a.Key = int64(seq) //nolint:gosec
			a.CreatedAt = now
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.Status == "" {
			a.Status = StatusNew
		}
		a.UpdatedAt = now
		data, err := json.Marshal(a)
		if err != nil {
			return errors.Wrap(err, "encode account")
		}
		return b.Put(itob(a.Key), data)
	})
}

// Get возвращает аккаунт по id.
func (s *Store) Get(id int64) (*Account, error) {
	var a *Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAccounts).Get(itob(id))
		if data == nil {
			return ErrNotFound
		}
		a = new(Account)
		return json.Unmarshal(data, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List возвращает все аккаунты по возрастанию id.
func (s *Store) List() ([]*Account, error) {
	var out []*Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			a := new(Account)
			if err := json.Unmarshal(v, a); err != nil {
				return errors.Wrapf(err, "decode account %x", k)
			}
			out = append(out, a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindByAPI ищет аккаунт с той же парой api_id/api_hash.
func (s *Store) FindByAPI(apiID int, apiHash string) (*Account, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, a := range all {
		if a.AppID == apiID && a.AppHash == apiHash {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

// Delete удаляет аккаунт.
func (s *Store) Delete(id int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		key := itob(id)
		if b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Delete(key)
	})
}
