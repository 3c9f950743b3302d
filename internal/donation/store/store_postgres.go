package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"feedra/internal/donation/models"
	"feedra/internal/donation/normalize"
	"feedra/internal/donation/query"
	"feedra/pkg/platform/sentinel"
)

//go:embed schema.sql
var schemaSQL string

// NotifyChannel is the LISTEN channel fed by the donations trigger.
const NotifyChannel = "donation_changes"

const donationColumns = `id, food_type, description, quantity, location, tags, pickup_instructions,
	status, urgency, created_at, expiry_date, claimed_by, claimed_at, completed_at, updated_at,
	donor_id, donor_name, contact_info`

var columnFor = map[string]string{
	models.FieldFoodType:           "food_type",
	models.FieldDescription:        "description",
	models.FieldQuantity:           "quantity",
	models.FieldLocation:           "location",
	models.FieldTags:               "tags",
	models.FieldPickupInstructions: "pickup_instructions",
	models.FieldStatus:             "status",
	models.FieldUrgency:            "urgency",
	models.FieldCreatedAt:          "created_at",
	models.FieldExpiryDate:         "expiry_date",
	models.FieldClaimedBy:          "claimed_by",
	models.FieldClaimedAt:          "claimed_at",
	models.FieldCompletedAt:        "completed_at",
	models.FieldUpdatedAt:          "updated_at",
	models.FieldDonorID:            "donor_id",
	models.FieldDonorName:          "donor_name",
	models.FieldContactInfo:        "contact_info",
}

// PostgresStore persists donations in PostgreSQL. Live queries LISTEN on
// NotifyChannel through a dedicated lib/pq connection and re-run the query on
// each notification.
type PostgresStore struct {
	pool       *pgxpool.Pool
	connString string
	logger     *slog.Logger

	minReconnect time.Duration
	maxReconnect time.Duration
}

type PostgresOption func(*PostgresStore)

func WithLogger(logger *slog.Logger) PostgresOption {
	return func(s *PostgresStore) { s.logger = logger }
}

func WithReconnectInterval(minInterval, maxInterval time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		s.minReconnect = minInterval
		s.maxReconnect = maxInterval
	}
}

// NewPostgres constructs a Postgres-backed store. connString is used for the
// listener connection and must reach the same database as pool.
func NewPostgres(pool *pgxpool.Pool, connString string, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		pool:         pool,
		connString:   connString,
		logger:       slog.Default(),
		minReconnect: 100 * time.Millisecond,
		maxReconnect: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate applies the embedded schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply donation schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, rec models.Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO donations (`+donationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		rec.ID, rec.FoodType, rec.Description, rec.Quantity, rec.Location, tags, rec.PickupInstructions,
		string(rec.Status), string(rec.Urgency),
		normalize.Optional(rec.CreatedAt), normalize.Optional(rec.ExpiryDate),
		rec.ClaimedBy, normalize.Optional(rec.ClaimedAt), normalize.Optional(rec.CompletedAt),
		normalize.Optional(rec.UpdatedAt),
		rec.DonorID, rec.DonorName, rec.ContactInfo,
	)
	if err != nil {
		return "", fmt.Errorf("create donation: %w", postgresError(err))
	}
	return rec.ID, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = $1`, id)
	rec, err := scanDonation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Record{}, sentinel.ErrNotFound
		}
		return models.Record{}, fmt.Errorf("get donation: %w", postgresError(err))
	}
	return rec, nil
}

func (s *PostgresStore) Query(ctx context.Context, spec query.Spec) ([]models.Record, error) {
	sql, args, err := lowerSQL(spec)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query donations: %w", postgresError(err))
	}
	defer rows.Close()

	out := make([]models.Record, 0)
	for rows.Next() {
		rec, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query donations: %w", postgresError(err))
	}
	return out, nil
}

// UpdateFields issues a single UPDATE touching only the named columns.
func (s *PostgresStore) UpdateFields(ctx context.Context, id string, fields models.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		col, ok := columnFor[f.Field]
		if !ok {
			return fmt.Errorf("update donation: unknown field %q", f.Field)
		}
		args = append(args, sqlValue(f.Value))
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	args = append(args, id)
	sql := `UPDATE donations SET ` + strings.Join(sets, ", ") + ` WHERE id = $` + strconv.Itoa(len(args))

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update donation: %w", postgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM donations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete donation: %w", postgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Listen opens a LISTEN connection for spec. The first Next returns the current
// results; each later Next waits for a change notification and re-queries.
func (s *PostgresStore) Listen(ctx context.Context, spec query.Spec) (Stream, error) {
	if _, _, err := lowerSQL(spec); err != nil {
		return nil, err
	}
	listener := pq.NewListener(s.connString, s.minReconnect, s.maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.WarnContext(ctx, "donation listener event", "event", int(ev), "error", err)
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	return &postgresStream{
		store:    s,
		spec:     spec,
		listener: listener,
		first:    true,
		done:     make(chan struct{}),
	}, nil
}

type postgresStream struct {
	store    *PostgresStore
	spec     query.Spec
	listener *pq.Listener
	first    bool
	done     chan struct{}
	stopOnce sync.Once
}

func (p *postgresStream) Next(ctx context.Context) ([]models.Record, error) {
	if p.first {
		p.first = false
		return p.store.Query(ctx, p.spec)
	}
	select {
	case <-p.done:
		return nil, ErrStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case _, ok := <-p.listener.Notify:
		// A nil notification follows a reconnect; changes may have been missed,
		// so it re-queries like any other.
		if !ok {
			return nil, ErrStreamClosed
		}
	}
	p.drain()
	return p.store.Query(ctx, p.spec)
}

// drain collapses a burst of notifications into one re-query.
func (p *postgresStream) drain() {
	for {
		select {
		case _, ok := <-p.listener.Notify:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (p *postgresStream) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		_ = p.listener.Close()
	})
}

func lowerSQL(spec query.Spec) (string, []any, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + donationColumns + ` FROM donations`)

	args := make([]any, 0, len(spec.Conditions)+1)
	for i, c := range spec.Conditions {
		col, ok := columnFor[c.Field]
		if !ok || c.Op != query.OpEqual {
			return "", nil, fmt.Errorf("unsupported condition %s %s", c.Field, c.Op)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, c.Value)
		b.WriteString(col + " = $" + strconv.Itoa(len(args)))
	}

	orderCol, ok := columnFor[spec.OrderBy.Field]
	if !ok {
		orderCol = "created_at"
	}
	dir := "ASC"
	if spec.OrderBy.Descending {
		dir = "DESC"
	}
	b.WriteString(" ORDER BY " + orderCol + " " + dir + " NULLS LAST, id")

	if spec.Limit > 0 {
		args = append(args, spec.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	return b.String(), args, nil
}

func scanDonation(row pgx.Row) (models.Record, error) {
	var (
		rec                                                    models.Record
		status, urgency                                        string
		createdAt, expiryDate, claimedAt, completedAt, updated *time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.FoodType, &rec.Description, &rec.Quantity, &rec.Location, &rec.Tags,
		&rec.PickupInstructions, &status, &urgency, &createdAt, &expiryDate,
		&rec.ClaimedBy, &claimedAt, &completedAt, &updated,
		&rec.DonorID, &rec.DonorName, &rec.ContactInfo,
	)
	if err != nil {
		return models.Record{}, err
	}
	rec.Status = models.Status(status)
	rec.Urgency = models.Urgency(urgency)
	rec.CreatedAt = models.InstantOrMissing(createdAt)
	rec.ExpiryDate = models.InstantOrMissing(expiryDate)
	rec.ClaimedAt = models.InstantOrMissing(claimedAt)
	rec.CompletedAt = models.InstantOrMissing(completedAt)
	rec.UpdatedAt = models.InstantOrMissing(updated)
	return rec, nil
}

func sqlValue(v any) any {
	switch value := v.(type) {
	case models.Status:
		return string(value)
	case models.Urgency:
		return string(value)
	case models.Timestamp:
		return normalize.Optional(value)
	}
	return v
}

func postgresError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501":
			return fmt.Errorf("%w: %w", sentinel.ErrPermissionDenied, err)
		case "23505":
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		}
	}
	return err
}
