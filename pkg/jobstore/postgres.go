package jobstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
)

// PostgresConfig mirrors devicestore.PostgresConfig; kept distinct so each
// store can point at a different database/pool if an operator wants that.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_connections"`
}

func openPostgres(cfg PostgresConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobstore: open connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("jobstore: ping: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns / 2)
	}
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// PostgresStore is the durable JobStore backend. Its schema also creates
// the models table, since training_jobs.model_id is a foreign key into
// models; model access itself goes through PostgresModelStore.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := openPostgres(cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("jobstore: init schema: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS models (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			architecture VARCHAR(255) NOT NULL,
			version INTEGER NOT NULL DEFAULT 0,
			status VARCHAR(50) NOT NULL,
			parent_model_id VARCHAR(255),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS training_jobs (
			id VARCHAR(255) PRIMARY KEY,
			model_id VARCHAR(255) REFERENCES models(id),
			implicit_model BOOLEAN NOT NULL DEFAULT FALSE,
			status VARCHAR(50) NOT NULL,
			num_rounds INTEGER NOT NULL,
			current_round INTEGER NOT NULL DEFAULT 0,
			min_devices INTEGER NOT NULL,
			base_learning_rate REAL NOT NULL,
			round_metrics JSONB NOT NULL DEFAULT '[]',
			scheduler_override JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			completed_at TIMESTAMP WITH TIME ZONE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_training_jobs_status ON training_jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_training_jobs_model ON training_jobs(model_id)`,
	}
	for _, s := range stmts {
		if _, err := p.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

// --- JobStore ---

func (p *PostgresStore) Create(j *Job) error {
	metrics, err := json.Marshal(j.RoundMetrics)
	if err != nil {
		return fmt.Errorf("jobstore: marshal round_metrics: %w", err)
	}
	_, err = p.db.Exec(`
		INSERT INTO training_jobs (id, model_id, implicit_model, status, num_rounds, current_round, min_devices,
			base_learning_rate, round_metrics, scheduler_override, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (id) DO NOTHING
	`, j.ID, j.ModelID, j.ImplicitModel, j.Status, j.NumRounds, j.CurrentRound, j.MinDevices,
		j.BaseLearningRate, metrics, j.SchedulerOverride, j.CreatedAt)
	return err
}

func (p *PostgresStore) Get(id string) (*Job, error) {
	row := p.db.QueryRow(`
		SELECT id, model_id, implicit_model, status, num_rounds, current_round, min_devices, base_learning_rate,
			round_metrics, scheduler_override, created_at, updated_at, completed_at
		FROM training_jobs WHERE id = $1
	`, id)
	return scanJob(row)
}

func (p *PostgresStore) Update(id string, f Fields) (*Job, error) {
	j, err := p.Get(id)
	if err != nil {
		return nil, err
	}
	f.apply(j, time.Now().UTC())
	metrics, err := json.Marshal(j.RoundMetrics)
	if err != nil {
		return nil, fmt.Errorf("jobstore: marshal round_metrics: %w", err)
	}
	_, err = p.db.Exec(`
		UPDATE training_jobs SET status = $2, current_round = $3, round_metrics = $4,
			updated_at = $5, completed_at = $6
		WHERE id = $1
	`, id, j.Status, j.CurrentRound, metrics, j.UpdatedAt, j.CompletedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (p *PostgresStore) ListAll(status *JobStatus) ([]*Job, error) {
	query := `SELECT id, model_id, implicit_model, status, num_rounds, current_round, min_devices, base_learning_rate,
		round_metrics, scheduler_override, created_at, updated_at, completed_at FROM training_jobs`
	var rows *sql.Rows
	var err error
	if status != nil {
		rows, err = p.db.Query(query+" WHERE status = $1 ORDER BY created_at DESC", *status)
	} else {
		rows, err = p.db.Query(query + " ORDER BY created_at DESC")
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Delete(id string) error {
	res, err := p.db.Exec(`DELETE FROM training_jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errJobNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var metrics []byte
	err := row.Scan(&j.ID, &j.ModelID, &j.ImplicitModel, &j.Status, &j.NumRounds, &j.CurrentRound, &j.MinDevices,
		&j.BaseLearningRate, &metrics, &j.SchedulerOverride, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errJobNotFound
		}
		return nil, err
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &j.RoundMetrics); err != nil {
			return nil, fmt.Errorf("jobstore: unmarshal round_metrics: %w", err)
		}
	}
	return &j, nil
}

// --- ModelStore ---

// PostgresModelStore is the durable ModelStore backend. It opens its own
// connection pool, separate from PostgresStore's, and is kept as a distinct
// type so PostgresStore's job methods do not leak into call sites that only
// need model access.
type PostgresModelStore struct {
	db *sql.DB
}

func NewPostgresModelStore(cfg PostgresConfig) (*PostgresModelStore, error) {
	db, err := openPostgres(cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresModelStore{db: db}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS models (
		id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		architecture VARCHAR(255) NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(50) NOT NULL,
		parent_model_id VARCHAR(255),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("jobstore: init models schema: %w", err)
	}
	return s, nil
}

func (p *PostgresModelStore) Create(m *Model) error {
	_, err := p.db.Exec(`
		INSERT INTO models (id, name, architecture, version, status, parent_model_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.Name, m.Architecture, m.Version, m.Status, m.ParentModelID, m.CreatedAt)
	return err
}

func (p *PostgresModelStore) Get(id string) (*Model, error) {
	var m Model
	err := p.db.QueryRow(`
		SELECT id, name, architecture, version, status, parent_model_id, created_at, updated_at
		FROM models WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.Architecture, &m.Version, &m.Status, &m.ParentModelID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errModelNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (p *PostgresModelStore) Update(id string, status ModelStatus, bumpVersion bool) (*Model, error) {
	m, err := p.Get(id)
	if err != nil {
		return nil, err
	}
	m.Status = status
	if bumpVersion {
		m.Version++
	}
	m.UpdatedAt = time.Now().UTC()
	_, err = p.db.Exec(`UPDATE models SET status = $2, version = $3, updated_at = $4 WHERE id = $1`,
		id, m.Status, m.Version, m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *PostgresModelStore) ListAll() ([]*Model, error) {
	rows, err := p.db.Query(`
		SELECT id, name, architecture, version, status, parent_model_id, created_at, updated_at
		FROM models ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Model
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.ID, &m.Name, &m.Architecture, &m.Version, &m.Status, &m.ParentModelID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Delete rejects removal while a training job references the model, per
// spec.md §4.5's higher-layer rule.
func (p *PostgresModelStore) Delete(id string) error {
	var refCount int
	err := p.db.QueryRow(`
		SELECT count(*) FROM training_jobs WHERE model_id = $1 AND status = 'running'
	`, id).Scan(&refCount)
	if err != nil {
		return err
	}
	if refCount > 0 {
		return apperrors.New(apperrors.FailedPrecondition, "model is referenced by a training job")
	}
	res, err := p.db.Exec(`DELETE FROM models WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errModelNotFound
	}
	return nil
}

func (p *PostgresModelStore) Close() error { return p.db.Close() }

var _ JobStore = (*PostgresStore)(nil)
var _ ModelStore = (*PostgresModelStore)(nil)
