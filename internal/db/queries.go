package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
)

// InsertCreditSnapshots records the balance of every subscription at ts.
func (db *DB) InsertCreditSnapshots(ctx context.Context, subs []models.Subscription, ts time.Time) error {
	if len(subs) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO credit_snapshots (
			subscription_id, plan_name, credits, credit_limit, reset_times, timestamp
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	stamp := ts.UTC().Format(timeLayout)
	for i := range subs {
		sub := &subs[i]
		if _, err := stmt.ExecContext(ctx,
			sub.ID,
			nullString(sub.DisplayName()),
			sub.CurrentCredits,
			sub.CreditLimit(),
			sub.ResetTimes,
			stamp,
		); err != nil {
			return fmt.Errorf("failed to insert snapshot for %d: %w", sub.ID, err)
		}
	}

	return tx.Commit()
}

// GetCreditHistory returns the snapshots of a subscription since the given
// time, oldest first.
func (db *DB) GetCreditHistory(ctx context.Context, subscriptionID int64, since time.Time) ([]models.CreditSnapshot, error) {
	query := `
		SELECT id, subscription_id, plan_name, credits, credit_limit, reset_times, timestamp
		FROM credit_snapshots
		WHERE subscription_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := db.QueryContext(ctx, query, subscriptionID, since.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query credit history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []models.CreditSnapshot
	for rows.Next() {
		var snap models.CreditSnapshot
		var planName sql.NullString
		var stamp string

		if err := rows.Scan(
			&snap.ID,
			&snap.SubscriptionID,
			&planName,
			&snap.Credits,
			&snap.CreditLimit,
			&snap.ResetTimes,
			&stamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credit snapshot: %w", err)
		}

		snap.PlanName = planName.String
		snap.Timestamp = parseTime(stamp)
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// PruneSnapshots deletes snapshots older than before and returns how many
// rows were removed.
func (db *DB) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM credit_snapshots WHERE timestamp < ?`,
		before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return result.RowsAffected()
}

// SaveSubscriptions replaces the cached subscription list.
func (db *DB) SaveSubscriptions(ctx context.Context, subs []models.Subscription, fetchedAt time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscription_cache`); err != nil {
		return fmt.Errorf("failed to clear subscription cache: %w", err)
	}

	stamp := fetchedAt.UTC().Format(timeLayout)
	for i := range subs {
		payload, err := json.Marshal(&subs[i])
		if err != nil {
			return fmt.Errorf("failed to encode subscription %d: %w", subs[i].ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subscription_cache (id, payload, fetched_at) VALUES (?, ?, ?)`,
			subs[i].ID, string(payload), stamp,
		); err != nil {
			return fmt.Errorf("failed to cache subscription %d: %w", subs[i].ID, err)
		}
	}

	return tx.Commit()
}

// LoadSubscriptions returns the cached subscription list and when it was
// fetched. Undecodable rows are skipped.
func (db *DB) LoadSubscriptions(ctx context.Context) ([]models.Subscription, time.Time, error) {
	rows, err := db.QueryContext(ctx, `SELECT payload, fetched_at FROM subscription_cache ORDER BY id`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query subscription cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []models.Subscription
	var fetchedAt time.Time
	for rows.Next() {
		var payload, stamp string
		if err := rows.Scan(&payload, &stamp); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan cached subscription: %w", err)
		}

		var sub models.Subscription
		if err := json.Unmarshal([]byte(payload), &sub); err != nil {
			logger.Warn("skipping undecodable cached subscription", "error", err)
			continue
		}
		subs = append(subs, sub)
		fetchedAt = parseTime(stamp)
	}

	return subs, fetchedAt, rows.Err()
}

func parseTime(value string) time.Time {
	t, err := time.ParseInLocation(timeLayout, value, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t.Local()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
