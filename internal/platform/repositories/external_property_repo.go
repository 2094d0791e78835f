package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"staysync/internal/platform/models"
)

// ExternalPropertyRepository stores local mirrors of upstream property
// records. The unique constraint on upstream_id is what makes the upsert
// below atomic; two concurrent writes for the same upstream ID cannot
// produce duplicate rows.
type ExternalPropertyRepository struct {
	db *sql.DB
}

func NewExternalPropertyRepository(db *sql.DB) *ExternalPropertyRepository {
	return &ExternalPropertyRepository{db: db}
}

func (r *ExternalPropertyRepository) GetByUpstreamID(upstreamID string) (*models.ExternalProperty, error) {
	query := `
		SELECT id, upstream_id, name, address, bedrooms, bathrooms, amenities, listing_url, created_at, updated_at
		FROM external_properties WHERE upstream_id = ?
	`
	return scanExternalProperty(r.db.QueryRow(query, upstreamID))
}

// Upsert inserts the mirror row or, if one already exists for the upstream
// ID, overwrites every mirrored field (last write wins). Returns the
// action taken so the sync log can record it. The existence probe is only
// for labeling; correctness comes from the ON CONFLICT clause.
func (r *ExternalPropertyRepository) Upsert(p *models.ExternalProperty) (string, error) {
	now := time.Now().Unix()
	amenitiesJSON, err := json.Marshal(p.Amenities)
	if err != nil {
		return "", err
	}

	var exists bool
	if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM external_properties WHERE upstream_id = ?)`, p.UpstreamID).Scan(&exists); err != nil {
		return "", err
	}

	query := `
		INSERT INTO external_properties (id, upstream_id, name, address, bedrooms, bathrooms, amenities, listing_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(upstream_id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			bedrooms = excluded.bedrooms,
			bathrooms = excluded.bathrooms,
			amenities = excluded.amenities,
			listing_url = excluded.listing_url,
			updated_at = excluded.updated_at
	`
	_, err = r.db.Exec(query,
		"extp_"+uuid.New().String(),
		p.UpstreamID,
		p.Name,
		p.Address,
		p.Bedrooms,
		p.Bathrooms,
		string(amenitiesJSON),
		p.ListingURL,
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

// Delete removes the mirror row if present. Deleting an absent row is not
// an error; the operation is idempotent.
func (r *ExternalPropertyRepository) Delete(upstreamID string) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM external_properties WHERE upstream_id = ?`, upstreamID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *ExternalPropertyRepository) List(limit int) ([]*models.ExternalProperty, error) {
	query := `
		SELECT id, upstream_id, name, address, bedrooms, bathrooms, amenities, listing_url, created_at, updated_at
		FROM external_properties ORDER BY updated_at DESC LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []*models.ExternalProperty
	for rows.Next() {
		p, err := scanExternalProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

func scanExternalProperty(s interface {
	Scan(dest ...interface{}) error
}) (*models.ExternalProperty, error) {
	var p models.ExternalProperty
	var amenitiesRaw []byte
	var listingURL sql.NullString

	err := s.Scan(
		&p.ID,
		&p.UpstreamID,
		&p.Name,
		&p.Address,
		&p.Bedrooms,
		&p.Bathrooms,
		&amenitiesRaw,
		&listingURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ListingURL = listingURL.String
	if len(amenitiesRaw) > 0 {
		json.Unmarshal(amenitiesRaw, &p.Amenities)
	}
	if p.Amenities == nil {
		p.Amenities = []string{}
	}

	return &p, nil
}
