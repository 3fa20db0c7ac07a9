package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hivedesk/hivedesk/internal/chat"
)

// ErrNotFound marks a missing row.
var ErrNotFound = errors.New("not found")

// User is a portal account row.
type User struct {
	ID             int64
	Username       string
	FirstName      string
	LastName       string
	HashedPassword string
	Director       bool
	Online         bool
	CreatedAt      time.Time
}

// DisplayName renders the account label the portal shows: real name
// when present, username otherwise.
func (u User) DisplayName() string {
	return displayName(u.FirstName, u.LastName, u.Username)
}

// Store wraps the SQLite database backing the development server.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			first_name VARCHAR(100) DEFAULT '',
			last_name VARCHAR(100) DEFAULT '',
			hashed_password VARCHAR(255) NOT NULL,
			is_director BOOLEAN DEFAULT FALSE,
			is_online BOOLEAN DEFAULT FALSE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			sender_id INTEGER NOT NULL,
			receiver_id INTEGER NOT NULL,
			subject VARCHAR(200) DEFAULT '',
			body TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			is_read BOOLEAN DEFAULT FALSE,
			FOREIGN KEY (sender_id) REFERENCES users(id),
			FOREIGN KEY (receiver_id) REFERENCES users(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a user and returns it with its assigned ID.
func (s *Store) CreateUser(ctx context.Context, u User) (User, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, first_name, last_name, hashed_password, is_director)
		 VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.FirstName, u.LastName, u.HashedPassword, u.Director)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("user id: %w", err)
	}
	u.ID = id
	return u, nil
}

// UserByUsername returns the user with the given username.
func (s *Store) UserByUsername(ctx context.Context, username string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, first_name, last_name, hashed_password, is_director, is_online, created_at
		 FROM users WHERE username = ?`, username))
}

// UserByID returns the user with the given id.
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, first_name, last_name, hashed_password, is_director, is_online, created_at
		 FROM users WHERE id = ?`, id))
}

func (s *Store) scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.HashedPassword, &u.Director, &u.Online, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// ListUsers returns users, optionally restricted to directors or
// non-directors. directorFilter nil means no restriction.
func (s *Store) ListUsers(ctx context.Context, directorFilter *bool) ([]User, error) {
	query := `SELECT id, username, first_name, last_name, hashed_password, is_director, is_online, created_at
		 FROM users`
	args := []any{}
	if directorFilter != nil {
		query += ` WHERE is_director = ?`
		args = append(args, *directorFilter)
	}
	query += ` ORDER BY last_name, first_name, username`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.HashedPassword, &u.Director, &u.Online, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetOnline flips the presence flag for a user.
func (s *Store) SetOnline(ctx context.Context, userID int64, online bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET is_online = ? WHERE id = ?`, online, userID)
	if err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

// InsertMessage stores a message and returns it with ID and timestamp.
func (s *Store) InsertMessage(ctx context.Context, senderID, receiverID int64, subject, body string) (chat.Message, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, subject, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		senderID, receiverID, subject, body, now)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return chat.Message{}, fmt.Errorf("message id: %w", err)
	}
	return chat.Message{
		ID: id, SenderID: senderID, ReceiverID: receiverID,
		Subject: subject, Body: body, CreatedAt: now,
	}, nil
}

// MessagesVisibleTo returns the messages a user may see, oldest first,
// with sender and receiver names denormalized in. A regular account
// sees its own traffic; a director sees the whole institution inbox,
// including threads handled by peer directors.
func (s *Store) MessagesVisibleTo(ctx context.Context, userID int64, sharedInbox bool) ([]chat.Message, error) {
	where := `m.sender_id = ? OR m.receiver_id = ?`
	args := []any{userID, userID}
	if sharedInbox {
		where = `snd.is_director = TRUE OR rcv.is_director = TRUE`
		args = nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.sender_id, m.receiver_id, m.subject, m.body, m.created_at, m.is_read,
		        snd.username, snd.first_name, snd.last_name,
		        rcv.username, rcv.first_name, rcv.last_name
		 FROM messages m
		 JOIN users snd ON snd.id = m.sender_id
		 JOIN users rcv ON rcv.id = m.receiver_id
		 WHERE `+where+`
		 ORDER BY m.created_at, m.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var (
			m                  chat.Message
			sndUser, sndFirst, sndLast string
			rcvUser, rcvFirst, rcvLast string
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Subject, &m.Body, &m.CreatedAt, &m.Read,
			&sndUser, &sndFirst, &sndLast, &rcvUser, &rcvFirst, &rcvLast); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.SenderName = displayName(sndFirst, sndLast, sndUser)
		m.ReceiverName = displayName(rcvFirst, rcvLast, rcvUser)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkReadFrom marks messages from counterpartID as read, scoped to
// that single counterpart. For a director account the whole institution
// thread is covered: messages the counterpart sent to any director flip
// together, because the shared inbox treats them as one conversation.
// Other counterparts' threads are never touched.
func (s *Store) MarkReadFrom(ctx context.Context, userID, counterpartID int64, sharedInbox bool) (int64, error) {
	query := `UPDATE messages SET is_read = TRUE
		 WHERE sender_id = ? AND is_read = FALSE AND receiver_id = ?`
	args := []any{counterpartID, userID}
	if sharedInbox {
		query = `UPDATE messages SET is_read = TRUE
		 WHERE sender_id = ? AND is_read = FALSE
		   AND receiver_id IN (SELECT id FROM users WHERE is_director = TRUE)`
		args = []any{counterpartID}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark read count: %w", err)
	}
	return n, nil
}

func displayName(first, last, username string) string {
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return username
	}
}
