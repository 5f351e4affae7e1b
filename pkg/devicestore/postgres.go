package devicestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresConfig mirrors the teacher's DatabaseConfig field-for-field.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_connections"`
}

// PostgresStore is the durable Store backend.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("devicestore: open connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("devicestore: ping: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns / 2)
	}
	db.SetConnMaxLifetime(time.Hour)

	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("devicestore: init schema: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) initSchema() error {
	_, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS devices (
		id VARCHAR(255) PRIMARY KEY,
		display_name VARCHAR(255) NOT NULL,
		hardware JSONB NOT NULL,
		telemetry JSONB NOT NULL,
		status VARCHAR(50) NOT NULL,
		metrics JSONB,
		registered_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		last_seen_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status)`)
	return err
}

func (p *PostgresStore) Register(d *Device) error {
	hw, err := json.Marshal(d.Hardware)
	if err != nil {
		return fmt.Errorf("devicestore: marshal hardware: %w", err)
	}
	tel, err := json.Marshal(d.Telemetry)
	if err != nil {
		return fmt.Errorf("devicestore: marshal telemetry: %w", err)
	}
	metrics, err := json.Marshal(d.Metrics)
	if err != nil {
		return fmt.Errorf("devicestore: marshal metrics: %w", err)
	}

	_, err = p.db.Exec(`
		INSERT INTO devices (id, display_name, hardware, telemetry, status, metrics, registered_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.DisplayName, hw, tel, d.Status, metrics, d.RegisteredAt)
	return err
}

func (p *PostgresStore) Get(id string) (*Device, error) {
	row := p.db.QueryRow(`
		SELECT id, display_name, hardware, telemetry, status, metrics, registered_at, last_seen_at
		FROM devices WHERE id = $1
	`, id)
	return scanDevice(row)
}

func (p *PostgresStore) Update(id string, u Update) (*Device, error) {
	d, err := p.Get(id)
	if err != nil {
		return nil, err
	}
	u.apply(d, time.Now().UTC())

	tel, err := json.Marshal(d.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("devicestore: marshal telemetry: %w", err)
	}

	_, err = p.db.Exec(`
		UPDATE devices SET display_name = $2, telemetry = $3, status = $4, last_seen_at = $5
		WHERE id = $1
	`, id, d.DisplayName, tel, d.Status, d.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (p *PostgresStore) UpdateMetrics(id string, metrics map[string]string) error {
	d, err := p.Get(id)
	if err != nil {
		return err
	}
	if d.Metrics == nil {
		d.Metrics = make(map[string]string, len(metrics))
	}
	for k, v := range metrics {
		d.Metrics[k] = v
	}
	encoded, err := json.Marshal(d.Metrics)
	if err != nil {
		return fmt.Errorf("devicestore: marshal metrics: %w", err)
	}
	_, err = p.db.Exec(`UPDATE devices SET metrics = $2, last_seen_at = $3 WHERE id = $1`,
		id, encoded, time.Now().UTC())
	return err
}

func (p *PostgresStore) ListAll(status *Status) ([]*Device, error) {
	query := `SELECT id, display_name, hardware, telemetry, status, metrics, registered_at, last_seen_at FROM devices`
	var rows *sql.Rows
	var err error
	if status != nil {
		query += " WHERE status = $1 ORDER BY registered_at DESC"
		rows, err = p.db.Query(query, *status)
	} else {
		query += " ORDER BY registered_at DESC"
		rows, err = p.db.Query(query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Delete(id string) error {
	res, err := p.db.Exec(`DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNotFound
	}
	return nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (*Device, error) {
	var d Device
	var hw, tel, metrics []byte
	err := row.Scan(&d.ID, &d.DisplayName, &hw, &tel, &d.Status, &metrics, &d.RegisteredAt, &d.LastSeenAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(hw, &d.Hardware); err != nil {
		return nil, fmt.Errorf("devicestore: unmarshal hardware: %w", err)
	}
	if err := json.Unmarshal(tel, &d.Telemetry); err != nil {
		return nil, fmt.Errorf("devicestore: unmarshal telemetry: %w", err)
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &d.Metrics); err != nil {
			return nil, fmt.Errorf("devicestore: unmarshal metrics: %w", err)
		}
	}
	return &d, nil
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*MemoryStore)(nil)
