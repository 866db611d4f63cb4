package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mediasession/pkg/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrTrackNotFound is returned when no indexed track matches the lookup
var ErrTrackNotFound = errors.New("track not found")

// Database wraps a *sql.DB holding the library index. The catalog is built
// from it at startup; the scanner and watcher keep it current. It is safe for
// concurrent use because the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	upsertTrackStmt  *sql.Stmt
	getTrackByIDStmt *sql.Stmt
	trackExistsStmt  *sql.Stmt
	removeTrackStmt  *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures the index table exists. Caller should Close() it when finished.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Library index opened")
	return db, nil
}

// createTables is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	tracksTable := `
	CREATE TABLE IF NOT EXISTS tracks (
		media_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		album TEXT NOT NULL,
		genre TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		file_path TEXT NOT NULL UNIQUE,
		file_size INTEGER NOT NULL DEFAULT 0,
		artwork_ref TEXT NOT NULL DEFAULT '',
		indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.conn.Exec(tracksTable); err != nil {
		return err
	}
	_, err := db.conn.Exec("CREATE INDEX IF NOT EXISTS idx_tracks_file_path ON tracks(file_path);")
	return err
}

func (db *Database) prepareStatements() error {
	var err error

	// A file renamed into an existing media id replaces the older row.
	db.upsertTrackStmt, err = db.conn.Prepare(`
		INSERT INTO tracks (media_id, title, artist, album, genre, duration_ms, file_path, file_size, artwork_ref, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(media_id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			genre = excluded.genre,
			duration_ms = excluded.duration_ms,
			file_path = excluded.file_path,
			file_size = excluded.file_size,
			artwork_ref = excluded.artwork_ref,
			indexed_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert track statement: %w", err)
	}

	db.getTrackByIDStmt, err = db.conn.Prepare(`
		SELECT media_id, title, artist, album, genre, duration_ms, file_path, file_size, artwork_ref
		FROM tracks WHERE media_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get track by ID statement: %w", err)
	}

	db.trackExistsStmt, err = db.conn.Prepare(`SELECT COUNT(*) FROM tracks WHERE file_path = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare track exists statement: %w", err)
	}

	db.removeTrackStmt, err = db.conn.Prepare(`DELETE FROM tracks WHERE file_path = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare remove track statement: %w", err)
	}

	return nil
}

// UpsertTrack inserts a track or replaces the row with the same media id.
func (db *Database) UpsertTrack(track models.Track) error {
	// A different file previously indexed under the same path must go first
	// to keep the file_path uniqueness constraint satisfied.
	if _, err := db.conn.Exec(`DELETE FROM tracks WHERE file_path = ? AND media_id <> ?`, track.AudioPath, track.ID); err != nil {
		return fmt.Errorf("clear stale path row: %w", err)
	}

	_, err := db.upsertTrackStmt.Exec(
		track.ID, track.Title, track.Artist, track.Album, track.Genre,
		track.DurationMS, track.AudioPath, track.FileSize, track.ArtworkRef)
	if err != nil {
		db.logger.WithError(err).WithField("file_path", track.AudioPath).Error("Failed to upsert track")
		return err
	}
	return nil
}

// GetAllTracks returns all indexed tracks ordered by media id.
func (db *Database) GetAllTracks() ([]models.Track, error) {
	rows, err := db.conn.Query(`
		SELECT media_id, title, artist, album, genre, duration_ms, file_path, file_size, artwork_ref
		FROM tracks
		ORDER BY media_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrackRows(rows)
}

// GetTrackByID returns one indexed track.
func (db *Database) GetTrackByID(mediaID string) (*models.Track, error) {
	var track models.Track
	err := db.getTrackByIDStmt.QueryRow(mediaID).Scan(
		&track.ID, &track.Title, &track.Artist, &track.Album, &track.Genre,
		&track.DurationMS, &track.AudioPath, &track.FileSize, &track.ArtworkRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, err
	}
	return &track, nil
}

// TrackExists reports whether a file path is already indexed.
func (db *Database) TrackExists(filePath string) (bool, error) {
	var count int
	if err := db.trackExistsStmt.QueryRow(filePath).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// RemoveTrackByPath drops the row for a deleted file.
func (db *Database) RemoveTrackByPath(filePath string) error {
	_, err := db.removeTrackStmt.Exec(filePath)
	return err
}

// Ping verifies the connection is usable.
func (db *Database) Ping() error {
	return db.conn.Ping()
}

// Close releases prepared statements and the connection.
func (db *Database) Close() error {
	for _, stmt := range []*sql.Stmt{db.upsertTrackStmt, db.getTrackByIDStmt, db.trackExistsStmt, db.removeTrackStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return db.conn.Close()
}

func scanTrackRows(rows *sql.Rows) ([]models.Track, error) {
	var tracks []models.Track
	for rows.Next() {
		var track models.Track
		if err := rows.Scan(
			&track.ID, &track.Title, &track.Artist, &track.Album, &track.Genre,
			&track.DurationMS, &track.AudioPath, &track.FileSize, &track.ArtworkRef); err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}
