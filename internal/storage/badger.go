package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Key namespaces inside the Badger keyspace. List entries are ordered by a
// big-endian sequence number kept under the counter namespace.
const (
	badgerValuePrefix   = "v/"
	badgerListPrefix    = "l/"
	badgerCounterPrefix = "n/"
	badgerListSep       = 0x00
)

type BadgerOptions struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// Logger receives Badger's internal log lines. Nil silences them.
	Logger *zap.Logger
}

type BadgerStore struct {
	opts BadgerOptions

	// writeMu serialises update transactions so list counters never conflict.
	writeMu sync.Mutex

	mu sync.RWMutex
	db *badger.DB
}

func NewBadgerStore(opts BadgerOptions) *BadgerStore {
	return &BadgerStore{opts: opts}
}

// badgerLogger adapts zap onto Badger's Logger interface.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (s *BadgerStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if !s.opts.InMemory && s.opts.Path == "" {
		return errors.New("badger path is required for persistent database")
	}

	var opts badger.Options
	if s.opts.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(s.opts.Path, 0o750); err != nil {
			return fmt.Errorf("create badger directory %s: %w", s.opts.Path, err)
		}
		opts = badger.DefaultOptions(s.opts.Path)
	}
	opts = opts.WithSyncWrites(s.opts.SyncWrites).WithNumVersionsToKeep(1)
	if s.opts.Logger != nil {
		opts = opts.WithLogger(badgerLogger{sugar: s.opts.Logger.Named("badger").Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger database: %w", err)
	}
	s.db = db
	return nil
}

func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.getDB(ctx)
	if err != nil {
		return nil, false, err
	}

	var value []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(valueKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *BadgerStore) Set(ctx context.Context, key string, value []byte) error {
	return s.Commit(ctx, NewBatch().Set(key, value))
}

func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	return s.Commit(ctx, NewBatch().Delete(key))
}

func (s *BadgerStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *BadgerStore) List(ctx context.Context, key string) ([][]byte, error) {
	db, err := s.getDB(ctx)
	if err != nil {
		return nil, err
	}

	out := [][]byte{}
	err = db.View(func(txn *badger.Txn) error {
		prefix := listPrefix(key)
		it := txn.NewIterator(iteratorOptions(prefix, true))
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) PushToList(ctx context.Context, key string, value []byte) error {
	return s.Commit(ctx, NewBatch().Push(key, value))
}

func (s *BadgerStore) All(ctx context.Context) (map[string][]byte, error) {
	db, err := s.getDB(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte)
	err = db.View(func(txn *badger.Txn) error {
		prefix := []byte(badgerValuePrefix)
		it := txn.NewIterator(iteratorOptions(prefix, true))
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[string(item.Key()[len(prefix):])] = value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Commit runs the whole batch in one update transaction.
func (s *BadgerStore) Commit(ctx context.Context, batch *Batch) error {
	db, err := s.getDB(ctx)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return db.Update(func(txn *badger.Txn) error {
		for _, op := range batch.Ops() {
			if err := applyBadger(txn, op); err != nil {
				return fmt.Errorf("commit %s: %w", op.Key, err)
			}
		}
		return nil
	})
}

func applyBadger(txn *badger.Txn, op Op) error {
	switch op.Kind {
	case OpSet:
		return txn.Set(valueKey(op.Key), op.Value)
	case OpDelete:
		if err := txn.Delete(valueKey(op.Key)); err != nil {
			return err
		}
		if err := txn.Delete(counterKey(op.Key)); err != nil {
			return err
		}
		keys, err := listKeys(txn, op.Key)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	case OpPush:
		seq, err := nextSeq(txn, op.Key)
		if err != nil {
			return err
		}
		return txn.Set(listEntryKey(op.Key, seq), op.Value)
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}

func nextSeq(txn *badger.Txn, key string) (uint64, error) {
	var seq uint64
	item, err := txn.Get(counterKey(key))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return 0, err
		}
		seq = binary.BigEndian.Uint64(raw)
	}

	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, seq+1)
	if err := txn.Set(counterKey(key), next); err != nil {
		return 0, err
	}
	return seq, nil
}

func listKeys(txn *badger.Txn, key string) ([][]byte, error) {
	prefix := listPrefix(key)
	it := txn.NewIterator(iteratorOptions(prefix, false))
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BadgerStore) getDB(ctx context.Context) (*badger.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func iteratorOptions(prefix []byte, values bool) badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = values
	return opts
}

func valueKey(key string) []byte {
	return []byte(badgerValuePrefix + key)
}

func counterKey(key string) []byte {
	return []byte(badgerCounterPrefix + key)
}

func listPrefix(key string) []byte {
	return append([]byte(badgerListPrefix+key), badgerListSep)
}

func listEntryKey(key string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(listPrefix(key), seq)
}
