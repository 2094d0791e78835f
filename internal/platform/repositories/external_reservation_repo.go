package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"staysync/internal/platform/models"
)

// ExternalReservationRepository stores local mirrors of upstream
// reservation records, keyed by the unique upstream_id.
type ExternalReservationRepository struct {
	db *sql.DB
}

func NewExternalReservationRepository(db *sql.DB) *ExternalReservationRepository {
	return &ExternalReservationRepository{db: db}
}

func (r *ExternalReservationRepository) GetByUpstreamID(upstreamID string) (*models.ExternalReservation, error) {
	query := `
		SELECT id, upstream_id, property_upstream_id, guest_name, guest_email, check_in, check_out, status, channel, total_price, created_at, updated_at
		FROM external_reservations WHERE upstream_id = ?
	`
	return scanExternalReservation(r.db.QueryRow(query, upstreamID))
}

// Upsert inserts or overwrites the mirror row for the upstream ID, last
// write wins. The existence probe is only for labeling the sync log;
// correctness comes from the ON CONFLICT clause.
func (r *ExternalReservationRepository) Upsert(res *models.ExternalReservation) (string, error) {
	now := time.Now().Unix()

	var exists bool
	if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM external_reservations WHERE upstream_id = ?)`, res.UpstreamID).Scan(&exists); err != nil {
		return "", err
	}

	query := `
		INSERT INTO external_reservations (id, upstream_id, property_upstream_id, guest_name, guest_email, check_in, check_out, status, channel, total_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(upstream_id) DO UPDATE SET
			property_upstream_id = excluded.property_upstream_id,
			guest_name = excluded.guest_name,
			guest_email = excluded.guest_email,
			check_in = excluded.check_in,
			check_out = excluded.check_out,
			status = excluded.status,
			channel = excluded.channel,
			total_price = excluded.total_price,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query,
		"extr_"+uuid.New().String(),
		res.UpstreamID,
		res.PropertyUpstreamID,
		res.GuestName,
		res.GuestEmail,
		res.CheckIn,
		res.CheckOut,
		res.Status,
		res.Channel,
		res.TotalPrice,
		now,
		now,
	)
	if err != nil {
		return "", err
	}

	if exists {
		return "update", nil
	}
	return "create", nil
}

// Delete removes the mirror row if present; deleting an absent row is a
// no-op, not an error.
func (r *ExternalReservationRepository) Delete(upstreamID string) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM external_reservations WHERE upstream_id = ?`, upstreamID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *ExternalReservationRepository) ListByProperty(propertyUpstreamID string) ([]*models.ExternalReservation, error) {
	query := `
		SELECT id, upstream_id, property_upstream_id, guest_name, guest_email, check_in, check_out, status, channel, total_price, created_at, updated_at
		FROM external_reservations WHERE property_upstream_id = ? ORDER BY check_in ASC
	`
	rows, err := r.db.Query(query, propertyUpstreamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []*models.ExternalReservation
	for rows.Next() {
		res, err := scanExternalReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

func scanExternalReservation(s interface {
	Scan(dest ...interface{}) error
}) (*models.ExternalReservation, error) {
	var res models.ExternalReservation
	var guestEmail, channel sql.NullString

	err := s.Scan(
		&res.ID,
		&res.UpstreamID,
		&res.PropertyUpstreamID,
		&res.GuestName,
		&guestEmail,
		&res.CheckIn,
		&res.CheckOut,
		&res.Status,
		&channel,
		&res.TotalPrice,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	res.GuestEmail = guestEmail.String
	res.Channel = channel.String

	return &res, nil
}
