package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"njord/internal/book"
)

const orderPrefix = "order/"

// Store persists limit order records so a trading pair can resume its book
// after a restart. One record per order key; records carry their insertion
// sequence so price-time priority survives the round trip.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a pebble database at the given path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("unable to open order store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func orderKey(key uuid.UUID) []byte {
	return []byte(orderPrefix + key.String())
}

// SaveOrder writes the current state of the order, overwriting any previous
// record under the same key.
func (s *Store) SaveOrder(order *book.LimitOrder) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("unable to marshal order %s: %w", order.Key, err)
	}
	if err := s.db.Set(orderKey(order.Key), data, pebble.Sync); err != nil {
		return fmt.Errorf("unable to save order %s: %w", order.Key, err)
	}
	return nil
}

// DeleteOrder removes the record for the given order key. Deleting a key that
// was never saved is not an error.
func (s *Store) DeleteOrder(key uuid.UUID) error {
	if err := s.db.Delete(orderKey(key), pebble.Sync); err != nil {
		return fmt.Errorf("unable to delete order %s: %w", key, err)
	}
	return nil
}

// LoadOrder reads one order record. Returns nil if no record exists.
func (s *Store) LoadOrder(key uuid.UUID) (*book.LimitOrder, error) {
	data, closer, err := s.db.Get(orderKey(key))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load order %s: %w", key, err)
	}
	defer closer.Close()

	var order book.LimitOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("unable to unmarshal order %s: %w", key, err)
	}
	return &order, nil
}

// AllOrders returns every stored order record, sorted by insertion sequence.
func (s *Store) AllOrders() ([]*book.LimitOrder, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(orderPrefix),
		UpperBound: []byte(orderPrefix + "\xff"),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to scan order store: %w", err)
	}
	defer iter.Close()

	var orders []*book.LimitOrder
	for iter.First(); iter.Valid(); iter.Next() {
		var order book.LimitOrder
		if err := json.Unmarshal(iter.Value(), &order); err != nil {
			return nil, fmt.Errorf("unable to unmarshal order record %q: %w", iter.Key(), err)
		}
		orders = append(orders, &order)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("unable to scan order store: %w", err)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].Seq < orders[j].Seq
	})
	return orders, nil
}
