package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonsson/defcon/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// CreateUser inserts an operator account, hashing its password.
func (db *DB) CreateUser(email, password string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{UUID: uuid.NewString(), Email: email, PasswordHash: string(hash)}
	res, err := db.conn.Exec(`INSERT INTO users (uuid, email, password_hash) VALUES (?, ?, ?)`, u.UUID, u.Email, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	u.ID = id
	return u, nil
}

// DeleteUser removes an operator account.
func (db *DB) DeleteUser(userUUID string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM users WHERE uuid=?`, userUUID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetUserByEmail returns a user by login email, used to authenticate
// /api/-/token requests.
func (db *DB) GetUserByEmail(email string) (*model.User, error) {
	row := db.conn.QueryRow(`SELECT id, uuid, email, password_hash FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// GetUserByUUID returns a user by its public identifier.
func (db *DB) GetUserByUUID(userUUID string) (*model.User, error) {
	row := db.conn.QueryRow(`SELECT id, uuid, email, password_hash FROM users WHERE uuid = ?`, userUUID)
	return scanUser(row)
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.UUID, &u.Email, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// ListUsers returns every operator account.
func (db *DB) ListUsers() ([]model.User, error) {
	rows, err := db.conn.Query(`SELECT id, uuid, email, password_hash FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// CheckUserPassword verifies a plaintext password against a user's stored
// hash. A method on model.User isn't possible from this package, so it's a
// free function here alongside the rest of the user-account queries.
func CheckUserPassword(u *model.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
