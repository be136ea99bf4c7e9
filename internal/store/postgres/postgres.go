package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vovakirdan/yapyard-server/internal/store"
	"github.com/vovakirdan/yapyard-server/internal/utils"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresStore implements store.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, verifies the connection and applies the schema.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const userColumns = `id, email, full_name, password_hash, bio, profile_pic, created_at`

func (s *PostgresStore) CreateUser(ctx context.Context, user *store.User) error {
	if user.ID == "" {
		user.ID = utils.NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, bio, profile_pic, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, user.FullName, user.PasswordHash, user.Bio, user.ProfilePic, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id, fullName, bio, profilePic string) (*store.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		UPDATE users
		SET full_name = $2, bio = $3, profile_pic = COALESCE(NULLIF($4, ''), profile_pic)
		WHERE id = $1
		RETURNING `+userColumns, id, fullName, bio, profilePic))
}

func (s *PostgresStore) ListUsersExcept(ctx context.Context, id string) ([]*store.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id <> $1 ORDER BY full_name ASC, id ASC`, id)
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

const messageColumns = `id, sender_id, receiver_id, text, image, seen, created_at`

func (s *PostgresStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = utils.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, image, seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, msg.Seen, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	return scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

func (s *PostgresStore) ListConversation(ctx context.Context, a, b string) ([]*store.Message, error) {
	return listConversation(ctx, s.pool, a, b)
}

func (s *PostgresStore) FetchHistory(ctx context.Context, viewerID, peerID string) ([]*store.Message, int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // no-op after commit
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE messages SET seen = TRUE
		WHERE sender_id = $1 AND receiver_id = $2 AND NOT seen
	`, peerID, viewerID)
	if err != nil {
		return nil, 0, fmt.Errorf("mark conversation seen: %w", err)
	}

	messages, err := listConversation(ctx, tx, viewerID, peerID)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit transaction: %w", err)
	}
	return messages, tag.RowsAffected(), nil
}

func (s *PostgresStore) MarkSeen(ctx context.Context, id, receiverID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET seen = TRUE WHERE id = $1 AND receiver_id = $2 AND NOT seen`, id, receiverID)
	if err != nil {
		return false, fmt.Errorf("mark seen: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists int
	err = s.pool.QueryRow(ctx,
		`SELECT 1 FROM messages WHERE id = $1 AND receiver_id = $2`, id, receiverID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("query message: %w", err)
	}
	return false, nil
}

func (s *PostgresStore) CountUnseenBySender(ctx context.Context, receiverID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND NOT seen
		GROUP BY sender_id
	`, receiverID)
	if err != nil {
		return nil, fmt.Errorf("count unseen: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sender string
		var n int64
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, fmt.Errorf("scan unseen count: %w", err)
		}
		counts[sender] = int(n)
	}
	return counts, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listConversation(ctx context.Context, q querier, a, b string) ([]*store.Message, error) {
	rows, err := q.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, seq ASC
	`, a, b)
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

func scanUser(row pgx.Row) (*store.User, error) {
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func scanMessage(row pgx.Row) (*store.Message, error) {
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &msg, nil
}

var _ store.Store = (*PostgresStore)(nil)
