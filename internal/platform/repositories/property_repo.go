package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"staysync/internal/platform/models"
)

// PropertyRepository covers the slice of the local property table the sync
// subsystem needs: resolving a property's calendar feed URL and updating
// it. Everything else about properties lives in the main application.
type PropertyRepository struct {
	db *sql.DB
}

func NewPropertyRepository(db *sql.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

func (r *PropertyRepository) Create(p *models.Property) error {
	if p.ID == "" {
		p.ID = "prop_" + uuid.New().String()
	}
	p.CreatedAt = time.Now().Unix()
	p.UpdatedAt = p.CreatedAt

	query := `
		INSERT INTO properties (id, name, address, upstream_id, ical_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, p.ID, p.Name, p.Address, p.UpstreamID, p.ICalURL, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PropertyRepository) GetByID(id string) (*models.Property, error) {
	query := `SELECT id, name, address, upstream_id, ical_url, created_at, updated_at FROM properties WHERE id = ?`
	return scanProperty(r.db.QueryRow(query, id))
}

func (r *PropertyRepository) UpdateICalURL(id, icalURL string) error {
	query := `UPDATE properties SET ical_url = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.Exec(query, icalURL, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListWithFeeds returns every property that has a calendar feed
// configured. The refresh worker iterates these.
func (r *PropertyRepository) ListWithFeeds() ([]*models.Property, error) {
	query := `SELECT id, name, address, upstream_id, ical_url, created_at, updated_at FROM properties WHERE ical_url != '' AND ical_url IS NOT NULL`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []*models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

func scanProperty(s interface {
	Scan(dest ...interface{}) error
}) (*models.Property, error) {
	var p models.Property
	var upstreamID, icalURL sql.NullString

	err := s.Scan(&p.ID, &p.Name, &p.Address, &upstreamID, &icalURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.UpstreamID = upstreamID.String
	p.ICalURL = icalURL.String

	return &p, nil
}
