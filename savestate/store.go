package savestate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/sarchlab/chip8sim/emu"
)

// ErrSlotNotFound indicates the requested slot doesn't exist.
var ErrSlotNotFound = errors.New("save slot not found")

var log = commonlog.GetLogger("chip8sim.savestate")

// SlotInfo describes a stored slot.
type SlotInfo struct {
	Name    string
	ROM     string
	SavedAt time.Time
	Size    int
}

// Store keeps snapshots in named slots of an SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS slots (
		name TEXT PRIMARY KEY,
		rom TEXT NOT NULL,
		saved_at INTEGER NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save writes snap to slot, replacing what the slot held. rom names the
// program the snapshot belongs to.
func (s *Store) Save(ctx context.Context, slot, rom string, snap emu.Snapshot) error {
	data, err := Marshal(snap)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO slots (name, rom, saved_at, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			rom = excluded.rom, saved_at = excluded.saved_at, data = excluded.data`,
		slot, rom, s.now().UnixNano(), data)
	if err != nil {
		return fmt.Errorf("saving slot %q: %w", slot, err)
	}

	log.Infof("saved slot %q (%s, %d bytes)", slot, rom, len(data))
	return nil
}

// Load reads the snapshot in slot.
func (s *Store) Load(ctx context.Context, slot string) (emu.Snapshot, SlotInfo, error) {
	var (
		info    = SlotInfo{Name: slot}
		savedAt int64
		data    []byte
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT rom, saved_at, data FROM slots WHERE name = ?", slot).
		Scan(&info.ROM, &savedAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return emu.Snapshot{}, SlotInfo{}, fmt.Errorf("%w: %q", ErrSlotNotFound, slot)
	}
	if err != nil {
		return emu.Snapshot{}, SlotInfo{}, fmt.Errorf("loading slot %q: %w", slot, err)
	}

	snap, err := Unmarshal(data)
	if err != nil {
		return emu.Snapshot{}, SlotInfo{}, fmt.Errorf("slot %q: %w", slot, err)
	}

	info.SavedAt = time.Unix(0, savedAt)
	info.Size = len(data)
	return snap, info, nil
}

// List returns every slot ordered by name.
func (s *Store) List(ctx context.Context) ([]SlotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, rom, saved_at, length(data) FROM slots ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing slots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var slots []SlotInfo
	for rows.Next() {
		var (
			info    SlotInfo
			savedAt int64
		)
		if err := rows.Scan(&info.Name, &info.ROM, &savedAt, &info.Size); err != nil {
			return nil, fmt.Errorf("listing slots: %w", err)
		}
		info.SavedAt = time.Unix(0, savedAt)
		slots = append(slots, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing slots: %w", err)
	}

	return slots, nil
}

// Delete removes slot.
func (s *Store) Delete(ctx context.Context, slot string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM slots WHERE name = ?", slot)
	if err != nil {
		return fmt.Errorf("deleting slot %q: %w", slot, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting slot %q: %w", slot, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrSlotNotFound, slot)
	}

	return nil
}
