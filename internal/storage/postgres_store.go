package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/example/field-dispatch/internal/auditlog"
	"github.com/example/field-dispatch/internal/models"
)

// PostgresStore persists service requests and their acceptance logs.
// It satisfies both RequestStore and auditlog.Log: an INSERT into the
// acceptance_logs table is the atomic append primitive, so concurrent
// accepts against the same job cannot lose entries.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Save(ctx context.Context, r *models.ServiceRequest) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO service_requests(id, title, customer_name, service_type, status, assigned_staff, latitude, longitude, address, payment_intent_id, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ID, r.Title, r.CustomerName, r.ServiceType, r.Status, pq.Array(r.AssignedStaff),
		r.Location.Latitude, r.Location.Longitude, r.Location.Address, r.PaymentIntentID, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) Update(ctx context.Context, r *models.ServiceRequest) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE service_requests SET status=$1, assigned_staff=$2, payment_intent_id=$3, updated_at=$4 WHERE id=$5`,
		r.Status, pq.Array(r.AssignedStaff), r.PaymentIntentID, time.Now(), r.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Find(ctx context.Context, id string) (*models.ServiceRequest, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, title, customer_name, service_type, status, assigned_staff, latitude, longitude, address, payment_intent_id, created_at, updated_at
		 FROM service_requests WHERE id=$1`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (p *PostgresStore) List(ctx context.Context) ([]*models.ServiceRequest, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, title, customer_name, service_type, status, assigned_staff, latitude, longitude, address, payment_intent_id, created_at, updated_at
		 FROM service_requests ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ServiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.ServiceRequest, error) {
	var r models.ServiceRequest
	var staff pq.StringArray
	if err := row.Scan(&r.ID, &r.Title, &r.CustomerName, &r.ServiceType, &r.Status, &staff,
		&r.Location.Latitude, &r.Location.Longitude, &r.Location.Address, &r.PaymentIntentID,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.AssignedStaff = []string(staff)
	return &r, nil
}

// Append records one acceptance entry. Rows are never updated or
// deleted; seq assignment by sequence keeps append order stable.
func (p *PostgresStore) Append(ctx context.Context, jobID string, entry models.AcceptanceLog) error {
	var acceptedBy []byte
	if entry.AcceptedBy != nil {
		b, err := json.Marshal(entry.AcceptedBy)
		if err != nil {
			return &auditlog.PersistenceError{Op: "append", JobID: jobID, Err: err}
		}
		acceptedBy = b
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO acceptance_logs(id, request_id, accepted_at, accepted_by, latitude, longitude, accuracy, platform)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, jobID, entry.AcceptedAt, acceptedBy,
		entry.Coordinates.Latitude, entry.Coordinates.Longitude, entry.Coordinates.Accuracy, entry.Platform)
	if err != nil {
		return &auditlog.PersistenceError{Op: "append", JobID: jobID, Err: err}
	}
	return nil
}

func (p *PostgresStore) ListFor(ctx context.Context, jobID string) ([]models.AcceptanceLog, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, request_id, accepted_at, accepted_by, latitude, longitude, accuracy, platform
		 FROM acceptance_logs WHERE request_id=$1 ORDER BY seq`, jobID)
	if err != nil {
		return nil, &auditlog.PersistenceError{Op: "list", JobID: jobID, Err: err}
	}
	defer rows.Close()
	out := make([]models.AcceptanceLog, 0)
	for rows.Next() {
		e, _, err := scanLogEntry(rows)
		if err != nil {
			return nil, &auditlog.PersistenceError{Op: "list", JobID: jobID, Err: err}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &auditlog.PersistenceError{Op: "list", JobID: jobID, Err: err}
	}
	return out, nil
}

func (p *PostgresStore) ListAll(ctx context.Context) (map[string][]models.AcceptanceLog, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, request_id, accepted_at, accepted_by, latitude, longitude, accuracy, platform
		 FROM acceptance_logs ORDER BY request_id, seq`)
	if err != nil {
		return nil, &auditlog.PersistenceError{Op: "list-all", Err: err}
	}
	defer rows.Close()
	out := make(map[string][]models.AcceptanceLog)
	for rows.Next() {
		e, jobID, err := scanLogEntry(rows)
		if err != nil {
			return nil, &auditlog.PersistenceError{Op: "list-all", Err: err}
		}
		out[jobID] = append(out[jobID], e)
	}
	if err := rows.Err(); err != nil {
		return nil, &auditlog.PersistenceError{Op: "list-all", Err: err}
	}
	return out, nil
}

func scanLogEntry(rows *sql.Rows) (models.AcceptanceLog, string, error) {
	var e models.AcceptanceLog
	var jobID string
	var acceptedBy []byte
	var accuracy sql.NullFloat64
	if err := rows.Scan(&e.ID, &jobID, &e.AcceptedAt, &acceptedBy,
		&e.Coordinates.Latitude, &e.Coordinates.Longitude, &accuracy, &e.Platform); err != nil {
		return e, "", err
	}
	if len(acceptedBy) > 0 {
		var u models.User
		if err := json.Unmarshal(acceptedBy, &u); err != nil {
			return e, "", err
		}
		e.AcceptedBy = &u
	}
	if accuracy.Valid {
		e.Coordinates.Accuracy = &accuracy.Float64
	}
	return e, jobID, nil
}
