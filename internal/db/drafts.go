package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultDraftSlot is the single named slot holding the report draft.
const DefaultDraftSlot = "report_draft"

// SaveDraft writes the serialized draft wholesale into the named slot,
// replacing whatever was there.
func (db *DB) SaveDraft(slot string, data []byte) error {
	_, err := db.Exec(
		`INSERT INTO drafts (slot, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		slot, string(data), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// LoadDraft reads the serialized draft from the named slot. Returns
// (nil, nil) when the slot is empty; that is a normal outcome, not an error.
func (db *DB) LoadDraft(slot string) ([]byte, error) {
	var data string
	err := db.QueryRow(`SELECT data FROM drafts WHERE slot = ?`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	return []byte(data), nil
}

// DeleteDraft clears the named slot. Deleting an empty slot is a no-op.
func (db *DB) DeleteDraft(slot string) error {
	if _, err := db.Exec(`DELETE FROM drafts WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}
