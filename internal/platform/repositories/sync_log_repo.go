package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"staysync/internal/platform/models"
)

// SyncLogRepository is append-only; entries are never updated or deleted
// here. Retention is an operational concern outside this service.
type SyncLogRepository struct {
	db *sql.DB
}

func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

func (r *SyncLogRepository) Append(entry *models.SyncLog) error {
	entry.ID = "sl_" + uuid.New().String()
	entry.CreatedAt = time.Now().Unix()

	query := `
		INSERT INTO sync_logs (id, sync_type, status, action, entity_id, items_synced, error_message, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, entry.ID, entry.SyncType, entry.Status, entry.Action, entry.EntityID, entry.ItemsSynced, entry.ErrorMessage, entry.Notes, entry.CreatedAt)
	return err
}

func (r *SyncLogRepository) List(limit int) ([]*models.SyncLog, error) {
	query := `
		SELECT id, sync_type, status, action, entity_id, items_synced, error_message, notes, created_at
		FROM sync_logs ORDER BY created_at DESC LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.SyncLog
	for rows.Next() {
		var e models.SyncLog
		var action, entityID, errorMessage, notes sql.NullString

		if err := rows.Scan(&e.ID, &e.SyncType, &e.Status, &action, &entityID, &e.ItemsSynced, &errorMessage, &notes, &e.CreatedAt); err != nil {
			return nil, err
		}

		e.Action = action.String
		e.EntityID = entityID.String
		e.ErrorMessage = errorMessage.String
		e.Notes = notes.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
