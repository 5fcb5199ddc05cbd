package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"terradeploy/internal/errors"

	"github.com/dgraph-io/badger/v4"
)

// table stores JSON values under "<prefix>:<id>" keys.
type table struct {
	db     *badger.DB
	prefix string
}

func (t table) key(id string) []byte {
	return []byte(t.prefix + ":" + id)
}

func (t table) put(id string, v any) error {
	if id == "" {
		return errors.ValidationError(t.prefix+" id cannot be empty", nil)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", t.prefix, err)
	}
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(t.key(id), data)
	})
}

func (t table) get(id string, v any) error {
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(t.key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if err == badger.ErrKeyNotFound {
		return errors.NotFound(fmt.Sprintf("%s %s not found", t.prefix, id))
	}
	return err
}

// each calls fn with the id and raw value of every entry in the table.
func (t table) each(fn func(id string, val []byte) error) error {
	return t.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(t.prefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), string(prefix))
			err := item.Value(func(val []byte) error {
				return fn(id, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// raw stores bytes without encoding.
type raw struct {
	db     *badger.DB
	prefix string
}

func (r raw) key(id string) []byte {
	return []byte(r.prefix + ":" + id)
}

func (r raw) put(id string, data []byte) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(r.key(id), data)
	})
}

func (r raw) get(id string) ([]byte, error) {
	var out []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(r.key(id))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, errors.NotFound(fmt.Sprintf("%s %s not found", r.prefix, id))
	}
	return out, err
}
