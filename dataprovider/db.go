// File: dataprovider/db.go
package dataprovider

import (
	"Windfall/pkg/ledger"
	"Windfall/utilities"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the flat durable store behind the trade ledger, the runtime
// settings snapshot, and the last-scan results.
type SQLiteStore struct {
	db     *sql.DB
	logger *utilities.Logger
}

func NewSQLiteStore(cfg utilities.DatabaseConfig, logger *utilities.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}
	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db at %s: %w", cfg.DBPath, err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		quantity REAL NOT NULL,
		entry_price REAL NOT NULL,
		invested REAL NOT NULL,
		buy_fee REAL NOT NULL,
		take_profit_price REAL NOT NULL,
		status TEXT NOT NULL,
		auto_sell INTEGER NOT NULL,
		simulated INTEGER NOT NULL,
		opened_at INTEGER NOT NULL,
		exit_price REAL NOT NULL DEFAULT 0,
		sell_fee REAL NOT NULL DEFAULT 0,
		gross_proceeds REAL NOT NULL DEFAULT 0,
		net_proceeds REAL NOT NULL DEFAULT 0,
		pnl REAL NOT NULL DEFAULT 0,
		closed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions (status);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS last_scan (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		taken_at INTEGER NOT NULL,
		payload TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialize sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// --- Position persistence (ledger.PositionStore) ---

// SavePosition upserts the full position row. Called by the ledger inside its
// write lock, before the mutating operation reports success.
func (s *SQLiteStore) SavePosition(pos ledger.Position) error {
	var closedAt sql.NullInt64
	if pos.ClosedAt != nil {
		closedAt = sql.NullInt64{Int64: pos.ClosedAt.Unix(), Valid: true}
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO positions
		(id, symbol, quantity, entry_price, invested, buy_fee, take_profit_price, status,
		 auto_sell, simulated, opened_at, exit_price, sell_fee, gross_proceeds, net_proceeds, pnl, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.ID, pos.Symbol, pos.Quantity, pos.EntryPrice, pos.Invested, pos.BuyFee, pos.TakeProfitPrice, pos.Status,
		boolToInt(pos.AutoSell), boolToInt(pos.Simulated), pos.OpenedAt.Unix(),
		pos.ExitPrice, pos.SellFee, pos.GrossProceeds, pos.NetProceeds, pos.PnL, closedAt)
	return err
}

// LoadPositions returns every persisted position, oldest first.
func (s *SQLiteStore) LoadPositions() ([]ledger.Position, error) {
	rows, err := s.db.Query(`SELECT id, symbol, quantity, entry_price, invested, buy_fee, take_profit_price, status,
		auto_sell, simulated, opened_at, exit_price, sell_fee, gross_proceeds, net_proceeds, pnl, closed_at
		FROM positions ORDER BY opened_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []ledger.Position
	for rows.Next() {
		var pos ledger.Position
		var autoSell, simulated int
		var openedAt int64
		var closedAt sql.NullInt64
		if err := rows.Scan(&pos.ID, &pos.Symbol, &pos.Quantity, &pos.EntryPrice, &pos.Invested, &pos.BuyFee,
			&pos.TakeProfitPrice, &pos.Status, &autoSell, &simulated, &openedAt,
			&pos.ExitPrice, &pos.SellFee, &pos.GrossProceeds, &pos.NetProceeds, &pos.PnL, &closedAt); err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		pos.AutoSell = autoSell != 0
		pos.Simulated = simulated != 0
		pos.OpenedAt = time.Unix(openedAt, 0).UTC()
		if closedAt.Valid {
			t := time.Unix(closedAt.Int64, 0).UTC()
			pos.ClosedAt = &t
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// --- Settings snapshot ---

// SaveSettings persists the runtime settings as a flat JSON snapshot.
func (s *SQLiteStore) SaveSettings(settings utilities.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES ('settings', ?)`, string(payload))
	return err
}

// LoadSettings returns the persisted settings snapshot; found is false when
// no snapshot has been saved yet.
func (s *SQLiteStore) LoadSettings() (settings utilities.Settings, found bool, err error) {
	var payload string
	row := s.db.QueryRow(`SELECT value FROM settings WHERE key = 'settings'`)
	if scanErr := row.Scan(&payload); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return utilities.Settings{}, false, nil
		}
		return utilities.Settings{}, false, fmt.Errorf("query settings: %w", scanErr)
	}
	if err := json.Unmarshal([]byte(payload), &settings); err != nil {
		return utilities.Settings{}, false, fmt.Errorf("unmarshal settings: %w", err)
	}
	return settings, true, nil
}

// --- Last scan snapshot ---

// SaveScanSnapshot stores the most recent scan results, superseding the
// previous snapshot.
func (s *SQLiteStore) SaveScanSnapshot(payload []byte, takenAt time.Time) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO last_scan (id, taken_at, payload) VALUES (1, ?, ?)`,
		takenAt.Unix(), string(payload))
	return err
}

// LoadScanSnapshot returns the last persisted scan results, if any.
func (s *SQLiteStore) LoadScanSnapshot() ([]byte, time.Time, error) {
	var takenAt int64
	var payload string
	row := s.db.QueryRow(`SELECT taken_at, payload FROM last_scan WHERE id = 1`)
	if err := row.Scan(&takenAt, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("query last scan: %w", err)
	}
	return []byte(payload), time.Unix(takenAt, 0).UTC(), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
