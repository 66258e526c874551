// Package sqlite is the embedded durable store behind the pipeline's
// transition history log and the dispatcher's subscriber set. The pure-Go
// driver keeps the service a single static binary.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	identity    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	from_state  TEXT NOT NULL,
	to_state    TEXT NOT NULL,
	occurred_at TIMESTAMP NOT NULL,
	alert_json  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transitions_occurred_at ON transitions(occurred_at);
CREATE INDEX IF NOT EXISTS idx_transitions_identity ON transitions(identity);

CREATE TABLE IF NOT EXISTS subscribers (
	id               TEXT PRIMARY KEY,
	label            TEXT NOT NULL DEFAULT '',
	email_address    TEXT NOT NULL DEFAULT '',
	webhook_url      TEXT NOT NULL DEFAULT '',
	push_token       TEXT NOT NULL DEFAULT '',
	preferences_json TEXT NOT NULL
);
`

// Store persists transition history and subscribers in one SQLite file.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path, enables WAL mode, and
// applies the schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// WAL lets the HTTP read surface query while a cycle appends.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type transitionRow struct {
	Identity   string    `db:"identity"`
	Kind       string    `db:"kind"`
	FromState  string    `db:"from_state"`
	ToState    string    `db:"to_state"`
	OccurredAt time.Time `db:"occurred_at"`
	AlertJSON  string    `db:"alert_json"`
}

// AppendTransitions records one cycle's transitions in emission order.
func (s *Store) AppendTransitions(ctx context.Context, transitions []domain.Transition) error {
	if len(transitions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `
		INSERT INTO transitions (identity, kind, from_state, to_state, occurred_at, alert_json)
		VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range transitions {
		alertJSON, err := json.Marshal(t.Alert)
		if err != nil {
			return fmt.Errorf("marshaling alert %s: %w", t.Alert.Identity, err)
		}
		if _, err := stmt.ExecContext(ctx,
			t.Alert.Identity, t.Kind.String(), t.From.String(), t.To.String(),
			t.OccurredAt.UTC(), string(alertJSON),
		); err != nil {
			return fmt.Errorf("inserting transition for %s: %w", t.Alert.Identity, err)
		}
	}

	return tx.Commit()
}

// History returns the transitions that occurred in [from, to], oldest first.
func (s *Store) History(ctx context.Context, from, to time.Time) ([]domain.Transition, error) {
	var rows []transitionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT identity, kind, from_state, to_state, occurred_at, alert_json
		FROM transitions
		WHERE occurred_at >= ? AND occurred_at <= ?
		ORDER BY seq`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}

	transitions := make([]domain.Transition, 0, len(rows))
	for _, row := range rows {
		t, err := rowToTransition(row)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, t)
	}
	return transitions, nil
}

func rowToTransition(row transitionRow) (domain.Transition, error) {
	var alert domain.Alert
	if err := json.Unmarshal([]byte(row.AlertJSON), &alert); err != nil {
		return domain.Transition{}, fmt.Errorf("unmarshaling alert %s: %w", row.Identity, err)
	}
	return domain.Transition{
		Alert:      alert,
		Kind:       domain.ParseTransitionKind(row.Kind),
		From:       domain.ParseLifecycleState(row.FromState),
		To:         domain.ParseLifecycleState(row.ToState),
		OccurredAt: row.OccurredAt,
	}, nil
}

type subscriberRow struct {
	ID              string `db:"id"`
	Label           string `db:"label"`
	EmailAddress    string `db:"email_address"`
	WebhookURL      string `db:"webhook_url"`
	PushToken       string `db:"push_token"`
	PreferencesJSON string `db:"preferences_json"`
}

// List returns all subscribers. Implements dispatch.SubscriberStore.
func (s *Store) List(ctx context.Context) ([]domain.Subscriber, error) {
	var rows []subscriberRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, label, email_address, webhook_url, push_token, preferences_json
		FROM subscribers ORDER BY label, id`)
	if err != nil {
		return nil, fmt.Errorf("listing subscribers: %w", err)
	}

	subs := make([]domain.Subscriber, 0, len(rows))
	for _, row := range rows {
		sub, err := rowToSubscriber(row)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Get returns one subscriber, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (domain.Subscriber, error) {
	var row subscriberRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, label, email_address, webhook_url, push_token, preferences_json
		FROM subscribers WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscriber{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("getting subscriber %s: %w", id, err)
	}
	return rowToSubscriber(row)
}

// Put inserts or replaces a subscriber.
func (s *Store) Put(ctx context.Context, sub domain.Subscriber) error {
	prefsJSON, err := json.Marshal(sub.Preferences)
	if err != nil {
		return fmt.Errorf("marshaling preferences for %s: %w", sub.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO subscribers (id, label, email_address, webhook_url, push_token, preferences_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Label, sub.EmailAddress, sub.WebhookURL, sub.PushToken, string(prefsJSON))
	if err != nil {
		return fmt.Errorf("upserting subscriber %s: %w", sub.ID, err)
	}
	return nil
}

// Delete removes a subscriber, or returns domain.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting subscriber %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting subscriber %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func rowToSubscriber(row subscriberRow) (domain.Subscriber, error) {
	var prefs domain.Preferences
	if err := json.Unmarshal([]byte(row.PreferencesJSON), &prefs); err != nil {
		return domain.Subscriber{}, fmt.Errorf("unmarshaling preferences for %s: %w", row.ID, err)
	}
	return domain.Subscriber{
		ID:           row.ID,
		Label:        row.Label,
		EmailAddress: row.EmailAddress,
		WebhookURL:   row.WebhookURL,
		PushToken:    row.PushToken,
		Preferences:  prefs,
	}, nil
}
