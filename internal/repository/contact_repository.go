package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spec-kit/crm-basico/internal/domain"
)

const (
	contactsTable = "contactos"

	uniqueViolation = "23505"

	pingTimeout = 2 * time.Second
)

// ErrStoreUnavailable is returned when the repository runs without a pool.
var ErrStoreUnavailable = errors.New("contact store unavailable")

// DB is the subset of *pgxpool.Pool the repository relies on.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ContactRepository is the persistence gateway for contacts.
type ContactRepository interface {
	ListAll(ctx context.Context) ([]domain.Contact, error)
	GetByID(ctx context.Context, id int64) (*domain.Contact, bool, error)
	Create(ctx context.Context, input domain.ContactInput) (int64, error)
	Update(ctx context.Context, id int64, input domain.ContactInput) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Search(ctx context.Context, term string) ([]domain.Contact, error)
	GetStats(ctx context.Context) (domain.Stats, error)
	CheckConnection(ctx context.Context) bool
}

type contactRepository struct {
	db     DB
	tracer trace.Tracer
}

// NewContactRepository returns a Postgres-backed implementation. A nil db
// yields a repository whose calls fail with ErrStoreUnavailable.
func NewContactRepository(db DB) ContactRepository {
	return &contactRepository{db: db, tracer: otel.Tracer("github.com/spec-kit/crm-basico/internal/repository")}
}

const contactColumns = `id, nombre, correo, telefono, empresa, estado, fecha_creacion, fecha_actualizacion`

func (r *contactRepository) ListAll(ctx context.Context) (contacts []domain.Contact, err error) {
	ctx, span := r.start(ctx, "select", 0)
	defer func() { endSpan(span, err) }()

	if r.db == nil {
		return nil, ErrStoreUnavailable
	}

	const query = `
        SELECT ` + contactColumns + `
        FROM contactos
        ORDER BY fecha_creacion DESC, id DESC`

	return r.list(ctx, query)
}

func (r *contactRepository) GetByID(ctx context.Context, id int64) (contact *domain.Contact, found bool, err error) {
	ctx, span := r.start(ctx, "select", id)
	defer func() { endSpan(span, err) }()

	if r.db == nil {
		return nil, false, ErrStoreUnavailable
	}

	const query = `
        SELECT ` + contactColumns + `
        FROM contactos WHERE id=$1`

	var c domain.Contact
	if err := scanContact(r.db.QueryRow(ctx, query, id), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &c, true, nil
}

func (r *contactRepository) Create(ctx context.Context, input domain.ContactInput) (id int64, err error) {
	ctx, span := r.start(ctx, "insert", 0)
	defer func() { endSpan(span, err) }()

	if r.db == nil {
		return 0, ErrStoreUnavailable
	}

	const query = `
        INSERT INTO contactos (nombre, correo, telefono, empresa, estado)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id`

	if err := r.db.QueryRow(ctx, query,
		input.Name,
		input.Email,
		input.Phone,
		input.Company,
		string(statusOrDefault(input.Status)),
	).Scan(&id); err != nil {
		return 0, mapWriteError(err)
	}
	span.SetAttributes(attribute.Int64("contact.id", id))
	return id, nil
}

func (r *contactRepository) Update(ctx context.Context, id int64, input domain.ContactInput) (updated bool, err error) {
	ctx, span := r.start(ctx, "update", id)
	defer func() { endSpan(span, err) }()

	if r.db == nil {
		return false, ErrStoreUnavailable
	}

	const query = `
        UPDATE contactos SET nombre=$1, correo=$2, telefono=$3, empresa=$4, estado=$5, fecha_actualizacion=NOW()
        WHERE id=$6`

	cmd, err := r.db.Exec(ctx, query,
		input.Name,
		input.Email,
		input.Phone,
		input.Company,
		string(statusOrDefault(input.Status)),
		id,
	)
	if err != nil {
		return false, mapWriteError(err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *contactRepository) Delete(ctx context.Context, id int64) (deleted bool, err error) {
	ctx, span := r.start(ctx, "delete", id)
	defer func() { endSpan(span, err) }()

	if r.db == nil {
		return false, ErrStoreUnavailable
	}

	const query = `DELETE FROM contactos WHERE id=$1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *contactRepository) Search(ctx context.Context, term string) (contacts []domain.Contact, err error) {
	ctx, span := r.start(ctx, "search", 0)
	defer func() { endSpan(span, err) }()

	if r.db == nil {
		return nil, ErrStoreUnavailable
	}

	const query = `
        SELECT ` + contactColumns + `
        FROM contactos
        WHERE nombre ILIKE $1 OR correo ILIKE $1 OR empresa ILIKE $1
        ORDER BY fecha_creacion DESC, id DESC`

	return r.list(ctx, query, "%"+escapeLike(term)+"%")
}

// GetStats counts the total and each status independently; the four reads
// do not share a snapshot.
func (r *contactRepository) GetStats(ctx context.Context) (stats domain.Stats, err error) {
	ctx, span := r.start(ctx, "count", 0)
	defer func() { endSpan(span, err) }()

	if r.db == nil {
		return domain.Stats{}, ErrStoreUnavailable
	}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM contactos`).Scan(&stats.Total); err != nil {
		return domain.Stats{}, fmt.Errorf("count contactos: %w", err)
	}

	const byStatus = `SELECT COUNT(*) FROM contactos WHERE estado=$1`
	targets := []struct {
		status domain.ContactStatus
		dest   *int64
	}{
		{domain.ContactStatusProspect, &stats.Prospects},
		{domain.ContactStatusCustomer, &stats.Customers},
		{domain.ContactStatusInactive, &stats.Inactive},
	}
	for _, t := range targets {
		if err := r.db.QueryRow(ctx, byStatus, string(t.status)).Scan(t.dest); err != nil {
			return domain.Stats{}, fmt.Errorf("count contactos %s: %w", t.status, err)
		}
	}
	return stats, nil
}

// CheckConnection runs a trivial query and reports whether it succeeded.
func (r *contactRepository) CheckConnection(ctx context.Context) bool {
	if r.db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return false
	}
	return one == 1
}

func (r *contactRepository) list(ctx context.Context, query string, args ...any) ([]domain.Contact, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Contact, 0)
	for rows.Next() {
		var c domain.Contact
		if err := scanContact(rows, &c); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *contactRepository) start(ctx context.Context, operation string, id int64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", contactsTable),
	}
	if id > 0 {
		attrs = append(attrs, attribute.Int64("contact.id", id))
	}
	return r.tracer.Start(ctx, "contactos."+operation, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func scanContact(row pgx.Row, c *domain.Contact) error {
	return row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.Company,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

// mapWriteError turns unique violations on the email column into ErrDuplicateEmail.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateEmail, pgErr.ConstraintName)
	}
	return err
}

func statusOrDefault(s domain.ContactStatus) domain.ContactStatus {
	if s == "" {
		return domain.ContactStatusProspect
	}
	return s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
