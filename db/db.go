package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"feedrelay/filters"
	"feedrelay/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	queryTimeout = 30 * time.Second

	// Keeps multi-row inserts well below the bind parameter limits of both drivers
	insertChunkSize = 400
)

var ErrDestinationNotFound = errors.New("destination not registered")

// Store is the destination registry and the delivery ledger, backed by SQLite or PostgreSQL
type Store struct {
	db     *sql.DB
	flavor sqlbuilder.Flavor
}

func New(db *sql.DB, flavor sqlbuilder.Flavor) *Store {
	return &Store{db: db, flavor: flavor}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database answers
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Registry write operations

// RegisterDestination points a destination at a channel. A new destination is given the
// defaults as its keyword set in the same transaction; an existing one keeps its keywords.
// It reports whether the destination was newly created.
func (s *Store) RegisterDestination(ctx context.Context, id, channelID string, defaults []string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithFields(log.Fields{
		"destination": id,
		"channel":     channelID,
	}).Info("Registering destination")

	created := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		exists, err := s.destinationExists(ctx, tx, id)
		if err != nil {
			return err
		}

		var query string
		var args []interface{}
		if exists {
			ub := s.flavor.NewUpdateBuilder()
			ub.Update("destinations").Set(ub.Assign("channel_id", channelID)).Where(ub.Equal("id", id))
			query, args = ub.Build()
		} else {
			ib := s.flavor.NewInsertBuilder()
			ib.InsertInto("destinations").Cols("id", "channel_id").Values(id, channelID)
			query, args = ib.Build()
			created = true
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("register destination: %w", err)
		}
		if !exists {
			return s.insertKeywords(ctx, tx, id, filters.Normalize(defaults))
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return created, nil
}

// UnregisterDestination removes a destination and its keywords. Delivery records are kept.
func (s *Store) UnregisterDestination(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithField("destination", id).Info("Unregistering destination")

	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.deleteKeywords(ctx, tx, id, nil); err != nil {
			return err
		}

		del := s.flavor.NewDeleteBuilder()
		del.DeleteFrom("destinations").Where(del.Equal("id", id))
		query, args := del.Build()

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete destination: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})

	return removed > 0, err
}

// AddKeywords adds keywords to a destination, ignoring ones it already has
func (s *Store) AddKeywords(ctx context.Context, id string, keywords ...string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireDestination(ctx, tx, id); err != nil {
			return err
		}
		return s.insertKeywords(ctx, tx, id, filters.Normalize(keywords))
	})
}

// RemoveKeywords removes keywords from a destination and returns how many were removed
func (s *Store) RemoveKeywords(ctx context.Context, id string, keywords ...string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	keywords = filters.Normalize(keywords)
	if len(keywords) == 0 {
		return 0, nil
	}

	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireDestination(ctx, tx, id); err != nil {
			return err
		}

		del := s.flavor.NewDeleteBuilder()
		del.DeleteFrom("destination_keywords").Where(
			del.Equal("destination_id", id),
			del.In("keyword", sqlbuilder.Flatten(keywords)...),
		)
		query, args := del.Build()

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("remove keywords: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})

	return removed, err
}

// ClearKeywords removes every keyword from a destination. It stops receiving stories until
// keywords are added or restored.
func (s *Store) ClearKeywords(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireDestination(ctx, tx, id); err != nil {
			return err
		}
		return s.deleteKeywords(ctx, tx, id, nil)
	})
}

// RestoreDefaultKeywords replaces the keyword set of a destination with the defaults
func (s *Store) RestoreDefaultKeywords(ctx context.Context, id string, defaults []string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireDestination(ctx, tx, id); err != nil {
			return err
		}
		if err := s.deleteKeywords(ctx, tx, id, nil); err != nil {
			return err
		}
		return s.insertKeywords(ctx, tx, id, filters.Normalize(defaults))
	})
}

// Registry read operations

// ListDestinationsWithChannel returns every destination that has a delivery channel, with its
// keyword set attached.
func (s *Store) ListDestinationsWithChannel(ctx context.Context) ([]models.Destination, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sb := s.flavor.NewSelectBuilder()
	sb.Select("id", "channel_id").From("destinations").Where(sb.NotEqual("channel_id", "")).OrderBy("id")
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var destinations []models.Destination
	for rows.Next() {
		var d models.Destination
		if err := rows.Scan(&d.ID, &d.ChannelID); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		destinations = append(destinations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	// SQLite runs on a single connection, release it before the next query
	rows.Close()

	sets, err := s.GetKeywordSets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range destinations {
		destinations[i].Keywords = sets[destinations[i].ID]
	}

	return destinations, nil
}

// GetKeywordSets returns the keyword set of every destination keyed by destination id
func (s *Store) GetKeywordSets(ctx context.Context) (map[string][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sb := s.flavor.NewSelectBuilder()
	sb.Select("destination_id", "keyword").From("destination_keywords").OrderBy("destination_id", "keyword")
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	sets := make(map[string][]string)
	for rows.Next() {
		var id, keyword string
		if err := rows.Scan(&id, &keyword); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		sets[id] = append(sets[id], keyword)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}

	return sets, nil
}

// GetKeywords returns the keyword set of one destination
func (s *Store) GetKeywords(ctx context.Context, id string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	exists, err := s.destinationExists(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrDestinationNotFound
	}

	sb := s.flavor.NewSelectBuilder()
	sb.Select("keyword").From("destination_keywords").Where(sb.Equal("destination_id", id)).OrderBy("keyword")
	query, args := sb.Build()

	return s.queryStrings(ctx, query, args)
}

// GetAllKeywords returns the union of the keyword sets of all destinations with a channel
func (s *Store) GetAllKeywords(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sb := s.flavor.NewSelectBuilder()
	sb.Select("k.keyword").Distinct().
		From("destination_keywords k").
		Join("destinations d", "d.id = k.destination_id").
		Where(sb.NotEqual("d.channel_id", "")).
		OrderBy("k.keyword")
	query, args := sb.Build()

	return s.queryStrings(ctx, query, args)
}

// Ledger operations

// HasBeenDelivered reports whether the story was already delivered to the destination
func (s *Store) HasBeenDelivered(ctx context.Context, destinationID, storyID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sb := s.flavor.NewSelectBuilder()
	sb.Select("1").From("deliveries").Where(
		sb.Equal("destination_id", destinationID),
		sb.Equal("story_id", storyID),
	).Limit(1)
	query, args := sb.Build()

	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query error: %w", err)
	}
	return true, nil
}

// BatchRecordDelivered records deliveries in one transaction. Pairs that are already recorded
// are left untouched, so repeating a batch is harmless.
func (s *Store) BatchRecordDelivered(ctx context.Context, records []models.DeliveryRecord) error {
	records = lo.Uniq(records)
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithField("count", len(records)).Debug("Recording deliveries")

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, chunk := range lo.Chunk(records, insertChunkSize) {
			ib := s.flavor.NewInsertBuilder()
			ib.InsertInto("deliveries").Cols("destination_id", "story_id")
			for _, r := range chunk {
				ib.Values(r.DestinationID, r.StoryID)
			}
			ib.SQL("ON CONFLICT DO NOTHING")
			query, args := ib.Build()

			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert error: %w", err)
			}
		}
		return nil
	})
}

// CountDeliveries returns the number of recorded deliveries
func (s *Store) CountDeliveries(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sb := s.flavor.NewSelectBuilder()
	sb.Select("count(*)").From("deliveries")
	query, args := sb.Build()

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("query error: %w", err)
	}
	return count, nil
}

// Helpers

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Errorf("Rollback failed: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) destinationExists(ctx context.Context, q querier, id string) (bool, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select("1").From("destinations").Where(sb.Equal("id", id)).Limit(1)
	query, args := sb.Build()

	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query error: %w", err)
	}
	return true, nil
}

func (s *Store) requireDestination(ctx context.Context, tx *sql.Tx, id string) error {
	exists, err := s.destinationExists(ctx, tx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrDestinationNotFound, id)
	}
	return nil
}

func (s *Store) insertKeywords(ctx context.Context, tx *sql.Tx, id string, keywords []string) error {
	for _, chunk := range lo.Chunk(keywords, insertChunkSize) {
		ib := s.flavor.NewInsertBuilder()
		ib.InsertInto("destination_keywords").Cols("destination_id", "keyword")
		for _, keyword := range chunk {
			ib.Values(id, keyword)
		}
		ib.SQL("ON CONFLICT DO NOTHING")
		query, args := ib.Build()

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert keywords: %w", err)
		}
	}
	return nil
}

// deleteKeywords removes the given keywords, or all of them when keywords is nil
func (s *Store) deleteKeywords(ctx context.Context, tx *sql.Tx, id string, keywords []string) error {
	del := s.flavor.NewDeleteBuilder()
	del.DeleteFrom("destination_keywords").Where(del.Equal("destination_id", id))
	if keywords != nil {
		del.Where(del.In("keyword", sqlbuilder.Flatten(keywords)...))
	}
	query, args := del.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete keywords: %w", err)
	}
	return nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args []interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	return out, nil
}
