package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
)

// ErrQueueEmpty is returned when no message is visible.
var ErrQueueEmpty = errors.New("queue empty")

// queueMessage is the durable envelope around a job id. The job id doubles
// as the message key, so re-enqueueing the same job is idempotent.
type queueMessage struct {
	JobID        string    `json:"job_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	VisibleAt    time.Time `json:"visible_at"`
	ReceiveCount int       `json:"receive_count"`
}

// Manager implements a persistent job-id queue on Badger. Messages are
// stored under queue:{name}:msg:{jobID} with a visibility index at
// queue:{name}:index:{visibleAtNanos}:{jobID} so Receive scans in
// visibility order.
type Manager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

// NewManager creates a Badger-backed queue manager.
func NewManager(db *badger.DB, queueName string, visibilityTimeout time.Duration, maxReceive int, logger arbor.ILogger) (interfaces.QueueManager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &Manager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
		logger:            logger,
	}, nil
}

// Enqueue makes the job id visible immediately. A message already queued
// for the same job is rewound rather than duplicated.
func (m *Manager) Enqueue(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errors.New("job id is required")
	}

	now := time.Now()
	msg := queueMessage{
		JobID:      jobID,
		EnqueuedAt: now,
		VisibleAt:  now,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	return m.db.Update(func(txn *badger.Txn) error {
		if item, err := txn.Get(m.msgKey(jobID)); err == nil {
			var existing queueMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); err == nil {
				if err := txn.Delete(m.indexKey(existing.VisibleAt, jobID)); err != nil && err != badger.ErrKeyNotFound {
					return err
				}
			}
		}
		if err := txn.Set(m.msgKey(jobID), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(msg.VisibleAt, jobID), []byte{})
	})
}

// Receive pops the oldest visible job id and hides it for the visibility
// timeout. The returned function acknowledges the message.
func (m *Manager) Receive(ctx context.Context) (string, func() error, error) {
	var msg queueMessage
	var oldIndexKey []byte

	err := m.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := m.indexPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ts, jobID, err := m.parseIndexKey(key)
			if err != nil {
				continue
			}
			if ts.After(now) {
				// Index keys sort by timestamp, nothing later is visible.
				break
			}

			item, err := txn.Get(m.msgKey(jobID))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Orphaned index entry, clean it up.
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}

			if msg.ReceiveCount >= m.maxReceive {
				m.logger.Warn().
					Str("job_id", msg.JobID).
					Int("receive_count", msg.ReceiveCount).
					Msg("Dropping message past max receives")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(m.msgKey(jobID)); err != nil {
					return err
				}
				continue
			}

			found = true
			oldIndexKey = key
			break
		}

		if !found {
			return ErrQueueEmpty
		}

		msg.ReceiveCount++
		msg.VisibleAt = time.Now().Add(m.visibilityTimeout)

		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(msg.JobID), data); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(m.indexKey(msg.VisibleAt, msg.JobID), []byte{})
	})
	if err != nil {
		return "", nil, err
	}

	jobID := msg.JobID
	done := func() error {
		return m.delete(jobID)
	}
	return jobID, done, nil
}

// Extend renews the lease on an in-flight message.
func (m *Manager) Extend(ctx context.Context, jobID string, duration time.Duration) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(m.msgKey(jobID))
		if err != nil {
			return err
		}

		var msg queueMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &msg)
		}); err != nil {
			return err
		}

		oldVisibleAt := msg.VisibleAt
		msg.VisibleAt = time.Now().Add(duration)

		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(jobID), data); err != nil {
			return err
		}
		if err := txn.Delete(m.indexKey(oldVisibleAt, jobID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(m.indexKey(msg.VisibleAt, jobID), []byte{})
	})
}

// Length counts queued messages, visible or not.
func (m *Manager) Length(ctx context.Context) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:msg:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close is a no-op, the database is managed by the storage layer.
func (m *Manager) Close() error {
	return nil
}

func (m *Manager) delete(jobID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(m.msgKey(jobID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		var msg queueMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &msg)
		}); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(msg.VisibleAt, jobID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Delete(m.msgKey(jobID))
	})
}

func (m *Manager) msgKey(jobID string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, jobID))
}

func (m *Manager) indexPrefix() []byte {
	return []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
}

func (m *Manager) indexKey(visibleAt time.Time, jobID string) []byte {
	// Zero pad to 20 digits so lexicographic order matches numeric order.
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, visibleAt.UnixNano(), jobID))
}

func (m *Manager) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := m.indexPrefix()
	if len(key) <= len(prefix) {
		return time.Time{}, "", fmt.Errorf("invalid index key length")
	}

	suffix := string(key[len(prefix):])
	if len(suffix) < 21 {
		return time.Time{}, "", fmt.Errorf("invalid index key suffix")
	}

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, ts), suffix[21:], nil
}
