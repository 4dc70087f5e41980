package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"datalens/models"
)

// HistoryStore persists chat exchanges per session in an embedded key-value
// store. It is independent of the per-request relational connections.
type HistoryStore struct {
	badgerDB *badger.DB
}

func NewHistoryStore(path string) (*HistoryStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging for cleaner output

	badgerDB, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	return &HistoryStore{badgerDB: badgerDB}, nil
}

func (h *HistoryStore) Close() error {
	return h.badgerDB.Close()
}

// StoreExchange appends one question/answer pair for the session.
func (h *HistoryStore) StoreExchange(sessionID, message, response string) error {
	return h.badgerDB.Update(func(txn *badger.Txn) error {
		timestamp := time.Now().UnixNano()
		key := []byte(fmt.Sprintf("chat:%s:%d", sessionID, timestamp))

		entry := models.ChatHistory{
			Message:   message,
			Response:  response,
			Timestamp: fmt.Sprintf("%d", timestamp),
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return txn.Set(key, data)
	})
}

// History returns the session's stored exchanges in insertion order.
func (h *HistoryStore) History(sessionID string) ([]models.ChatHistory, error) {
	var history []models.ChatHistory

	err := h.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fmt.Sprintf("chat:%s:", sessionID))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry models.ChatHistory
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				history = append(history, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return history, err
}
