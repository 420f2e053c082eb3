package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/snapshelf/core"
	"github.com/poiesic/snapshelf/storage"
)

// Save inserts the record and evicts the oldest records beyond the cap, all
// in one transaction. A record with the same timestamp fails with
// storage.ErrDuplicateKey.
func (b *Backend) Save(ctx context.Context, record *core.Record) (storage.Outcome, error) {
	if err := core.ValidateRecord(record); err != nil {
		return 0, err
	}

	value, err := encodeValue(record)
	if err != nil {
		return 0, err
	}

	err = b.withTx(ctx, func(tx *badger.Txn) error {
		key := makeRecordKey(record.Timestamp)
		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrDuplicateKey
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}

		timestamps, err := recordTimestamps(tx)
		if err != nil {
			return err
		}
		for _, ts := range storage.Surplus(timestamps, b.cap) {
			if err := tx.Delete(makeRecordKey(ts)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return storage.Persisted, nil
}

// List returns every stored record, newest first. Records whose envelope
// fails verification are logged and skipped.
func (b *Backend) List(ctx context.Context) ([]*core.Record, error) {
	records := []*core.Record{}
	err := b.withTx(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			var record *core.Record
			err := item.Value(func(val []byte) error {
				var err error
				record, err = decodeValue(val)
				return err
			})
			if errors.Is(err, storage.ErrSerializationFailed) {
				b.logger.Warn("skipping unreadable record", "key", string(item.Key()), "err", err)
				continue
			}
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	storage.SortNewestFirst(records)
	return records, nil
}

// Clear deletes every record in one transaction.
func (b *Backend) Clear(ctx context.Context) error {
	return b.withTx(ctx, func(tx *badger.Txn) error {
		timestamps, err := recordTimestamps(tx)
		if err != nil {
			return err
		}
		for _, ts := range timestamps {
			if err := tx.Delete(makeRecordKey(ts)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// recordTimestamps lists the stored timestamps in ascending order. The
// iterator is closed before returning so the caller may write in tx.
func recordTimestamps(tx *badger.Txn) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(recordPrefix)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var timestamps []string
	for iter.Rewind(); iter.Valid(); iter.Next() {
		timestamps = append(timestamps, timestampFromKey(iter.Item().Key()))
	}
	return timestamps, nil
}
