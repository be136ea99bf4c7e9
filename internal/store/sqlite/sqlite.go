package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/yapyard-server/internal/store"
	"github.com/vovakirdan/yapyard-server/internal/utils"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates the tables if they do not exist yet.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

const userColumns = `id, email, full_name, password_hash, bio, profile_pic, created_at`

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	if user.ID == "" {
		user.ID = utils.NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (id, email, full_name, password_hash, bio, profile_pic, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.FullName, user.PasswordHash, user.Bio, user.ProfilePic, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// UpdateProfile updates the editable profile fields.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, id, fullName, bio, profilePic string) (*store.User, error) {
	query := `
		UPDATE users
		SET full_name = ?, bio = ?, profile_pic = CASE WHEN ? = '' THEN profile_pic ELSE ? END
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, fullName, bio, profilePic, profilePic, id)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

// ListUsersExcept lists all users except the given one.
func (s *SQLiteStore) ListUsersExcept(ctx context.Context, id string) ([]*store.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id != ? ORDER BY full_name ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ==== MessageStore implementation ====

const messageColumns = `id, sender_id, receiver_id, text, image, seen, created_at`

// SaveMessage persists a message to storage.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = utils.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (id, sender_id, receiver_id, text, image, seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, msg.Seen, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	return scanMessage(row)
}

// ListConversation returns the two-way conversation between a and b.
func (s *SQLiteStore) ListConversation(ctx context.Context, a, b string) ([]*store.Message, error) {
	return listConversation(ctx, s.db, a, b)
}

// FetchHistory marks the peer's unseen messages as seen and returns the
// conversation inside one transaction.
func (s *SQLiteStore) FetchHistory(ctx context.Context, viewerID, peerID string) ([]*store.Message, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE messages SET seen = 1
		WHERE sender_id = ? AND receiver_id = ? AND seen = 0
	`, peerID, viewerID)
	if err != nil {
		return nil, 0, fmt.Errorf("mark conversation seen: %w", err)
	}
	flipped, err := result.RowsAffected()
	if err != nil {
		return nil, 0, fmt.Errorf("rows affected: %w", err)
	}

	messages, err := listConversation(ctx, tx, viewerID, peerID)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit transaction: %w", err)
	}
	return messages, flipped, nil
}

// MarkSeen flips one message to seen on behalf of its receiver.
func (s *SQLiteStore) MarkSeen(ctx context.Context, id, receiverID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET seen = 1 WHERE id = ? AND receiver_id = ? AND seen = 0`, id, receiverID)
	if err != nil {
		return false, fmt.Errorf("mark seen: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// Nothing changed: already seen, or not addressed to the caller.
	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM messages WHERE id = ? AND receiver_id = ?`, id, receiverID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("query message: %w", err)
	}
	return false, nil
}

// CountUnseenBySender counts unseen inbound messages per sender.
func (s *SQLiteStore) CountUnseenBySender(ctx context.Context, receiverID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = ? AND seen = 0
		GROUP BY sender_id
	`, receiverID)
	if err != nil {
		return nil, fmt.Errorf("count unseen: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sender string
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, fmt.Errorf("scan unseen count: %w", err)
		}
		counts[sender] = n
	}
	return counts, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listConversation(ctx context.Context, q queryer, a, b string) ([]*store.Message, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, rowid ASC
	`, a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.Bio,
		&user.ProfilePic,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func scanMessage(row scanner) (*store.Message, error) {
	var msg store.Message
	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Text,
		&msg.Image,
		&msg.Seen,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &msg, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

var _ store.Store = (*SQLiteStore)(nil)
