package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonsson/defcon/internal/model"
)

// CreateGroup inserts a new check group.
func (db *DB) CreateGroup(g *model.Group) error {
	if g.UUID == "" {
		g.UUID = uuid.NewString()
	}
	res, err := db.conn.Exec(`INSERT INTO groups (uuid, name) VALUES (?, ?)`, g.UUID, g.Name)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = id
	return nil
}

// UpdateGroup renames a group.
func (db *DB) UpdateGroup(g *model.Group) error {
	_, err := db.conn.Exec(`UPDATE groups SET name=? WHERE uuid=?`, g.Name, g.UUID)
	return err
}

// DeleteGroup removes a group; checks referencing it fall back to
// group_id = NULL via the foreign key's ON DELETE SET NULL.
func (db *DB) DeleteGroup(groupUUID string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM groups WHERE uuid=?`, groupUUID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetGroupByUUID returns a group by its public identifier.
func (db *DB) GetGroupByUUID(groupUUID string) (*model.Group, error) {
	row := db.conn.QueryRow(`SELECT id, uuid, name FROM groups WHERE uuid = ?`, groupUUID)
	return scanGroup(row)
}

func scanGroup(row rowScanner) (*model.Group, error) {
	var g model.Group
	err := row.Scan(&g.ID, &g.UUID, &g.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan group: %w", err)
	}
	return &g, nil
}

// ListGroups returns every configured group.
func (db *DB) ListGroups() ([]model.Group, error) {
	rows, err := db.conn.Query(`SELECT id, uuid, name FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}
