package audit

import (
	"github.com/rs/zerolog/log"

	"staysync/internal/platform/models"
	"staysync/internal/platform/repositories"
)

// Recorder writes sync audit entries. It exists purely for operational
// visibility: a failed audit write is reported on the fallback log channel
// and never surfaces to the operation being audited.
type Recorder struct {
	logs *repositories.SyncLogRepository
}

func NewRecorder(logs *repositories.SyncLogRepository) *Recorder {
	return &Recorder{logs: logs}
}

func (r *Recorder) Record(entry *models.SyncLog) {
	if err := r.logs.Append(entry); err != nil {
		log.Error().
			Err(err).
			Str("sync_type", entry.SyncType).
			Str("entity_id", entry.EntityID).
			Msg("failed to append sync log entry")
	}
}

// Success records a successful attempt.
func (r *Recorder) Success(syncType, action, entityID string, items int, notes string) {
	r.Record(&models.SyncLog{
		SyncType:    syncType,
		Status:      models.SyncStatusSuccess,
		Action:      action,
		EntityID:    entityID,
		ItemsSynced: items,
		Notes:       notes,
	})
}

// Error records a failed attempt.
func (r *Recorder) Error(syncType, action, entityID, errMsg string) {
	r.Record(&models.SyncLog{
		SyncType:     syncType,
		Status:       models.SyncStatusError,
		Action:       action,
		EntityID:     entityID,
		ErrorMessage: errMsg,
	})
}
