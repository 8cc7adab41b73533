package storage

import (
  "encoding/json"
  "fmt"
  "time"

  "github.com/robertof/go-rapt-exporter/brewing"
  "github.com/rs/zerolog/log"
  "go.etcd.io/bbolt"
)

var (
  bucketSessions = []byte("sessions")
  bucketMeta = []byte("meta")

  keyCurrent = []byte("current")
)

type BoltStore struct {
  db *bbolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
  db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})

  if err != nil {
    return nil, fmt.Errorf("failed to open session database %q: %w", path, err)
  }

  err = db.Update(func(tx *bbolt.Tx) error {
    for _, name := range [][]byte{bucketSessions, bucketMeta} {
      if _, err := tx.CreateBucketIfNotExists(name); err != nil {
        return fmt.Errorf("failed to create bucket %q: %w", name, err)
      }
    }

    return nil
  })

  if err != nil {
    db.Close()
    return nil, err
  }

  log.Debug().Str("Path", path).Msg("storage: opened session database")

  return &BoltStore{db: db}, nil
}

func (b *BoltStore) SaveSession(s *brewing.Session) error {
  data, err := json.Marshal(s)

  if err != nil {
    return fmt.Errorf("failed to encode %v: %w", s, err)
  }

  return b.db.Update(func(tx *bbolt.Tx) error {
    return tx.Bucket(bucketSessions).Put([]byte(s.ID), data)
  })
}

func (b *BoltStore) DeleteSession(id string) error {
  return b.db.Update(func(tx *bbolt.Tx) error {
    bucket := tx.Bucket(bucketSessions)

    if bucket.Get([]byte(id)) == nil {
      return fmt.Errorf("session %q: %w", id, ErrNotFound)
    }

    if err := bucket.Delete([]byte(id)); err != nil {
      return err
    }

    meta := tx.Bucket(bucketMeta)

    if string(meta.Get(keyCurrent)) == id {
      return meta.Delete(keyCurrent)
    }

    return nil
  })
}

func (b *BoltStore) LoadSessions() (out []*brewing.Session, err error) {
  err = b.db.View(func(tx *bbolt.Tx) error {
    return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
      var s brewing.Session

      if err := json.Unmarshal(v, &s); err != nil {
        return fmt.Errorf("failed to decode session %q: %w", k, err)
      }

      out = append(out, &s)

      return nil
    })
  })

  return out, err
}

func (b *BoltStore) SetCurrent(id string) error {
  return b.db.Update(func(tx *bbolt.Tx) error {
    meta := tx.Bucket(bucketMeta)

    if id == "" {
      return meta.Delete(keyCurrent)
    }

    return meta.Put(keyCurrent, []byte(id))
  })
}

func (b *BoltStore) Current() (id string, err error) {
  err = b.db.View(func(tx *bbolt.Tx) error {
    id = string(tx.Bucket(bucketMeta).Get(keyCurrent))
    return nil
  })

  return id, err
}

func (b *BoltStore) Close() error {
  return b.db.Close()
}
