package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const categoryBucketName = "categories"

// Cache stores found records by normalized business number
type Cache interface {
	// Get returns the cached record and whether it was present and fresh
	Get(number string) (*CategoryRecord, bool, error)

	// Put stores a record
	Put(number string, record *CategoryRecord) error

	// Close closes the cache
	Close() error
}

type cachedRecord struct {
	Record    *CategoryRecord `json:"record"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// BoltCache implements the Cache interface using BoltDB
type BoltCache struct {
	db  *bbolt.DB
	ttl time.Duration
	now func() time.Time
}

// NewBoltCache opens a BoltDB cache file. Entries older than ttl are misses;
// a zero ttl keeps entries forever.
func NewBoltCache(path string, ttl time.Duration) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(categoryBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltCache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get retrieves a fresh record
func (b *BoltCache) Get(number string) (*CategoryRecord, bool, error) {
	var entry *cachedRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(categoryBucketName)).Get([]byte(NormalizeBusinessNumber(number)))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading cached record: %w", err)
	}
	if entry == nil || entry.Record == nil {
		return nil, false, nil
	}
	if b.ttl > 0 && b.now().Sub(entry.FetchedAt) > b.ttl {
		return nil, false, nil
	}
	return entry.Record, true, nil
}

// Put stores a record stamped with the current time
func (b *BoltCache) Put(number string, record *CategoryRecord) error {
	if record == nil {
		return fmt.Errorf("refusing to cache empty record for %s", number)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(cachedRecord{Record: record, FetchedAt: b.now()})
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return tx.Bucket([]byte(categoryBucketName)).Put([]byte(NormalizeBusinessNumber(number)), data)
	})
}

// Close closes the database
func (b *BoltCache) Close() error {
	return b.db.Close()
}
