package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonsson/defcon/internal/model"
)

// CreateAlerter inserts a new notification target.
func (db *DB) CreateAlerter(a *model.Alerter) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	res, err := db.conn.Exec(`
		INSERT INTO alerters (uuid, name, kind, url, username, password) VALUES (?, ?, ?, ?, ?, ?)
	`, a.UUID, a.Name, string(a.Kind), a.URL, a.Username, a.Password)
	if err != nil {
		return fmt.Errorf("insert alerter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// UpdateAlerter applies a full update to an existing alerter.
func (db *DB) UpdateAlerter(a *model.Alerter) error {
	_, err := db.conn.Exec(`
		UPDATE alerters SET name=?, kind=?, url=?, username=?, password=? WHERE uuid=?
	`, a.Name, string(a.Kind), a.URL, a.Username, a.Password, a.UUID)
	return err
}

// DeleteAlerter removes an alerter; checks referencing it fall back to
// alerter_id = NULL via the foreign key's ON DELETE SET NULL.
func (db *DB) DeleteAlerter(alerterUUID string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM alerters WHERE uuid=?`, alerterUUID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetAlerterByID is used when resolving a check's alerter_id foreign key.
func (db *DB) GetAlerterByID(id int64) (*model.Alerter, error) {
	row := db.conn.QueryRow(`SELECT id, uuid, name, kind, url, username, password FROM alerters WHERE id = ?`, id)
	return scanAlerter(row)
}

// GetAlerterByUUID returns an alerter by its public identifier.
func (db *DB) GetAlerterByUUID(alerterUUID string) (*model.Alerter, error) {
	row := db.conn.QueryRow(`SELECT id, uuid, name, kind, url, username, password FROM alerters WHERE uuid = ?`, alerterUUID)
	return scanAlerter(row)
}

func scanAlerter(row rowScanner) (*model.Alerter, error) {
	var a model.Alerter
	var kind string
	var url, username, password sql.NullString
	err := row.Scan(&a.ID, &a.UUID, &a.Name, &kind, &url, &username, &password)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan alerter: %w", err)
	}
	a.Kind = model.AlerterKind(kind)
	a.URL = url.String
	a.Username = username.String
	a.Password = password.String
	return &a, nil
}

// ListAlerters returns every configured alerter.
func (db *DB) ListAlerters() ([]model.Alerter, error) {
	rows, err := db.conn.Query(`SELECT id, uuid, name, kind, url, username, password FROM alerters ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list alerters: %w", err)
	}
	defer rows.Close()

	var out []model.Alerter
	for rows.Next() {
		a, err := scanAlerter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
