package conversation

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	gojson "github.com/goccy/go-json"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// cursorTTL bounds how long an abandoned conversation lingers before badger
// reclaims it; a session that never reaches final_confirmation or explicit
// cancel is not otherwise cleaned up.
const cursorTTL = 24 * time.Hour

// CursorStore persists WorkflowCursor state keyed on (session_id, user_id),
// backed by an embedded badger database so a session survives a process
// restart without needing a full relational schema for ephemeral state.
type CursorStore struct {
	db *badger.DB
}

// OpenCursorStore opens (creating if absent) the badger database at dir.
func OpenCursorStore(dir string) (*CursorStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open conversation cursor store: %w", err)
	}
	return &CursorStore{db: db}, nil
}

// Close releases the underlying badger database.
func (s *CursorStore) Close() error {
	return s.db.Close()
}

func cursorKey(sessionID, userID string) []byte {
	return []byte("cursor:" + userID + ":" + sessionID)
}

// Get loads a session's cursor. Returns models.ErrNotFound if none exists.
func (s *CursorStore) Get(sessionID, userID string) (*models.WorkflowCursor, error) {
	var cursor models.WorkflowCursor
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cursorKey(sessionID, userID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return models.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return gojson.Unmarshal(val, &cursor)
		})
	})
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

// Save upserts a session's cursor, refreshing its TTL.
func (s *CursorStore) Save(cursor *models.WorkflowCursor) error {
	cursor.UpdatedAt = time.Now()
	data, err := gojson.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("marshal workflow cursor: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(cursorKey(cursor.SessionID, cursor.UserID), data).WithTTL(cursorTTL)
		return txn.SetEntry(entry)
	})
}

// Evict removes a session's cursor, called on successful pipeline creation
// or explicit cancel.
func (s *CursorStore) Evict(sessionID, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(cursorKey(sessionID, userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}
