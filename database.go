package main

import (
	"database/sql"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PilotRow is a registered pilot name
type PilotRow struct {
	ID        int64
	Name      string
	PassHash  string
	CreatedAt time.Time
}

// LifetimeStats are a pilot's totals across server runs
type LifetimeStats struct {
	Name     string  `json:"name"`
	Kills    int     `json:"kills"`
	Deaths   int     `json:"deaths"`
	Playtime float64 `json:"playtime"`
}

// LeaderboardEntry represents one row in the leaderboard
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	LifetimeStats
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pilots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS lifetime_stats (
		name TEXT PRIMARY KEY,
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		playtime REAL NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("db: migration error: %v", err)
	}
	return err
}

// CreatePilot registers a pilot name (returns pilot ID)
func (db *DB) CreatePilot(name, passHash string) (int64, error) {
	res, err := db.conn.Exec("INSERT INTO pilots (name, pass_hash) VALUES (?, ?)", name, passHash)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetPilotByName returns a pilot, or nil if the name is not registered
func (db *DB) GetPilotByName(name string) (*PilotRow, error) {
	row := db.conn.QueryRow("SELECT id, name, pass_hash, created_at FROM pilots WHERE name = ?", name)
	p := &PilotRow{}
	err := row.Scan(&p.ID, &p.Name, &p.PassHash, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// PilotExists checks if a pilot name is registered
func (db *DB) PilotExists(name string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM pilots WHERE name = ?", name).Scan(&count)
	return count > 0, err
}

// ApplyStatDeltas adds a batch of increments in one transaction
func (db *DB) ApplyStatDeltas(deltas []StatDelta) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO lifetime_stats (name, kills, deaths, playtime) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			kills = kills + excluded.kills,
			deaths = deaths + excluded.deaths,
			playtime = playtime + excluded.playtime,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range deltas {
		if _, err := stmt.Exec(d.Name, d.Kills, d.Deaths, d.Playtime); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetLifetimeStats returns a pilot's totals, or nil if none are recorded
func (db *DB) GetLifetimeStats(name string) (*LifetimeStats, error) {
	row := db.conn.QueryRow("SELECT name, kills, deaths, playtime FROM lifetime_stats WHERE name = ?", name)
	s := &LifetimeStats{}
	err := row.Scan(&s.Name, &s.Kills, &s.Deaths, &s.Playtime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// GetLeaderboard returns top pilots sorted by the given field
func (db *DB) GetLeaderboard(orderBy string, limit int) ([]LeaderboardEntry, error) {
	// Whitelist valid order columns
	validCols := map[string]string{
		"kills":    "kills",
		"deaths":   "deaths",
		"playtime": "playtime",
		"kd":       "CASE WHEN deaths > 0 THEN CAST(kills AS REAL)/deaths ELSE kills END",
	}
	col, ok := validCols[orderBy]
	if !ok {
		col = "kills"
	}

	rows, err := db.conn.Query(`SELECT name, kills, deaths, playtime FROM lifetime_stats
		ORDER BY `+col+` DESC, name ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.Kills, &e.Deaths, &e.Playtime); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}

// GetSetting returns a stored setting, or "" if it is not set
func (db *DB) GetSetting(key string) string {
	var value string
	if err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value); err != nil {
		return ""
	}
	return value
}

// SetSetting stores a setting
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
