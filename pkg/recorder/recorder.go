// Package recorder archives joint states from the bus into a sqlite
// database for offline review.
package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/samparadis/dvrk-ros/pkg/bus"
	"github.com/samparadis/dvrk-ros/pkg/core"
	"github.com/samparadis/dvrk-ros/pkg/msgs"
)

const schema = `
CREATE TABLE IF NOT EXISTS joint_states (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	arm         TEXT    NOT NULL,
	recorded_at INTEGER NOT NULL,
	payload     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS joint_states_arm ON joint_states (arm, id);
`

// Sample is one archived joint state.
type Sample struct {
	Arm        string
	RecordedAt time.Time
	State      msgs.JointState
}

// Recorder subscribes to joint-state topics and persists every message.
type Recorder struct {
	db     *sql.DB
	logger core.Logger

	mu   sync.Mutex
	subs []bus.Subscription
}

// Open creates or opens the database at path and prepares the schema.
func Open(path string, logger core.Logger) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare recorder schema: %w", err)
	}
	return &Recorder{db: db, logger: logger}, nil
}

// Record subscribes to topic on the bus and archives every joint state
// published there under the given arm name. Messages that do not decode
// as joint states are logged and skipped.
func (r *Recorder) Record(b bus.Bus, arm, topic string) error {
	sub, err := b.Subscribe(topic, func(msg bus.Message) {
		var js msgs.JointState
		if err := msg.Decode(&js); err != nil {
			r.logger.WithFields(map[string]interface{}{
				"arm":   arm,
				"topic": topic,
				"error": err.Error(),
			}).Error("recorder: undecodable message")
			return
		}
		if err := r.insert(arm, msg.Data); err != nil {
			r.logger.WithFields(map[string]interface{}{
				"arm":   arm,
				"error": err.Error(),
			}).Error("recorder: insert failed")
		}
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) insert(arm string, payload []byte) error {
	_, err := r.db.Exec(
		"INSERT INTO joint_states (arm, recorded_at, payload) VALUES (?, ?, ?)",
		arm, time.Now().UnixNano(), string(payload),
	)
	return err
}

// Samples returns up to limit archived states for the arm, newest first.
func (r *Recorder) Samples(arm string, limit int) ([]Sample, error) {
	rows, err := r.db.Query(
		"SELECT recorded_at, payload FROM joint_states WHERE arm = ? ORDER BY id DESC LIMIT ?",
		arm, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query samples for %s: %w", arm, err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var at int64
		var payload string
		if err := rows.Scan(&at, &payload); err != nil {
			return nil, err
		}
		s := Sample{Arm: arm, RecordedAt: time.Unix(0, at)}
		if err := msgs.DefaultBinder.Bind([]byte(payload), &s.State); err != nil {
			return nil, fmt.Errorf("decode archived state: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Count returns the number of archived states for the arm.
func (r *Recorder) Count(arm string) (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM joint_states WHERE arm = ?", arm).Scan(&n)
	return n, err
}

// Close unsubscribes all topics and closes the database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			r.logger.WithFields(map[string]interface{}{
				"topic": sub.Topic(),
				"error": err.Error(),
			}).Error("recorder: unsubscribe failed")
		}
	}
	return r.db.Close()
}
