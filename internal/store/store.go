package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

// fixed width, so that text ordering matches time ordering
const timeFormat = "2006-01-02 15:04:05.000000"

const playerColumns = `id, name, p_id, description, url, cover_url, announcement,
	cover_image IS NOT NULL, created_at, updated_at`

type StoreCtx struct {
	logger zerolog.Logger
	db     *sql.DB
}

func Open(path string) (*StoreCtx, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &StoreCtx{
		logger: log.With().Str("module", "store").Logger(),
		db:     db,
	}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store.logger.Info().Str("path", path).Msg("database opened")
	return store, nil
}

func (s *StoreCtx) Close() error {
	return s.db.Close()
}

func (s *StoreCtx) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		p_id TEXT NOT NULL UNIQUE,
		description TEXT,
		url TEXT NOT NULL,
		cover_url TEXT,
		cover_image BLOB,
		announcement TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_players_updated_at ON players(updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// List returns all players, most recently updated first. Cover images are
// loaded only when withCover is set.
func (s *StoreCtx) List(ctx context.Context, withCover bool) ([]Player, error) {
	columns := playerColumns
	if withCover {
		columns += ", cover_image"
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM players ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	players := []Player{}
	for rows.Next() {
		var player *Player
		if withCover {
			var cover []byte
			player, err = scanPlayer(rows, &cover)
			if player != nil {
				player.CoverImage = cover
			}
		} else {
			player, err = scanPlayer(rows)
		}
		if err != nil {
			return nil, err
		}

		players = append(players, *player)
	}

	return players, rows.Err()
}

func (s *StoreCtx) Get(ctx context.Context, id int64) (*Player, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id)
	return notFound(scanPlayer(row))
}

func (s *StoreCtx) GetByPID(ctx context.Context, pId string) (*Player, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE p_id = ?`, pId)
	return notFound(scanPlayer(row))
}

func (s *StoreCtx) Create(ctx context.Context, in PlayerInput) (*Player, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := pidTaken(ctx, tx, in.PID, 0); err != nil {
		return nil, err
	}

	now := formatTime(time.Now())
	res, err := tx.ExecContext(ctx, `
	INSERT INTO players (name, p_id, description, url, cover_url, announcement, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, in.Name, in.PID, nullString(in.Description), in.URL, nullString(in.CoverURL), nullString(in.Announcement), now, now)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("id", id).Str("pId", in.PID).Msg("player created")
	return s.Get(ctx, id)
}

func (s *StoreCtx) Update(ctx context.Context, id int64, in PlayerInput) (*Player, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := pidTaken(ctx, tx, in.PID, id); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
	UPDATE players
	SET name = ?, p_id = ?, description = ?, url = ?, cover_url = ?, announcement = ?, updated_at = ?
	WHERE id = ?
	`, in.Name, in.PID, nullString(in.Description), in.URL, nullString(in.CoverURL), nullString(in.Announcement), formatTime(time.Now()), id)
	if err != nil {
		return nil, err
	}

	if err := affected(res); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("id", id).Str("pId", in.PID).Msg("player updated")
	return s.Get(ctx, id)
}

// Upsert creates player or updates the one with the same pId.
func (s *StoreCtx) Upsert(ctx context.Context, in PlayerInput) (*Player, bool, error) {
	existing, err := s.GetByPID(ctx, in.Normalize().PID)
	if errors.Is(err, ErrNotFound) {
		player, err := s.Create(ctx, in)
		return player, true, err
	}
	if err != nil {
		return nil, false, err
	}

	player, err := s.Update(ctx, existing.ID, in)
	return player, false, err
}

func (s *StoreCtx) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM players WHERE id = ?`, id)
	if err != nil {
		return err
	}

	if err := affected(res); err != nil {
		return err
	}

	s.logger.Info().Int64("id", id).Msg("player deleted")
	return nil
}

func (s *StoreCtx) SetCover(ctx context.Context, id int64, image []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE players SET cover_image = ?, updated_at = ? WHERE id = ?`,
		image, formatTime(time.Now()), id)
	if err != nil {
		return err
	}

	return affected(res)
}

// GetCover returns stored cover image, ErrNotFound when there is none.
func (s *StoreCtx) GetCover(ctx context.Context, id int64) ([]byte, error) {
	var image []byte

	err := s.db.QueryRowContext(ctx, `SELECT cover_image FROM players WHERE id = ?`, id).Scan(&image)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(image) == 0) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return image, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row scanner, extra ...any) (*Player, error) {
	var (
		p                                  Player
		description, coverURL, announcement sql.NullString
		createdAt, updatedAt               string
	)

	dest := []any{&p.ID, &p.Name, &p.PID, &description, &p.URL, &coverURL, &announcement,
		&p.HasCover, &createdAt, &updatedAt}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	p.Description = description.String
	p.CoverURL = coverURL.String
	p.Announcement = announcement.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	return &p, nil
}

func pidTaken(ctx context.Context, tx *sql.Tx, pId string, exceptID int64) error {
	var id int64

	err := tx.QueryRowContext(ctx, `SELECT id FROM players WHERE p_id = ? AND id <> ? LIMIT 1`, pId, exceptID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	return ErrDuplicatePID
}

func notFound(player *Player, err error) (*Player, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return player, err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
