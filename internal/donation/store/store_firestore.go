package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"feedra/internal/donation/models"
	"feedra/internal/donation/query"
	"feedra/pkg/platform/sentinel"
)

// FirestoreStore persists donations as documents in a Firestore collection.
// Field keys match the web client so both read the same documents.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client, collection: query.Collection}
}

func (s *FirestoreStore) Create(ctx context.Context, rec models.Record) (string, error) {
	data := toDocument(rec)
	if rec.ID != "" {
		if _, err := s.client.Collection(s.collection).Doc(rec.ID).Create(ctx, data); err != nil {
			return "", fmt.Errorf("create donation: %w", firestoreError(err))
		}
		return rec.ID, nil
	}
	ref, _, err := s.client.Collection(s.collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("create donation: %w", firestoreError(err))
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (models.Record, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		return models.Record{}, fmt.Errorf("get donation: %w", firestoreError(err))
	}
	return fromDocument(snap), nil
}

func (s *FirestoreStore) Query(ctx context.Context, spec query.Spec) ([]models.Record, error) {
	docs, err := s.lower(spec).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query donations: %w", firestoreError(err))
	}
	return fromDocuments(docs), nil
}

// UpdateFields issues a field-mask update; untouched fields keep their values.
func (s *FirestoreStore) UpdateFields(ctx context.Context, id string, fields models.Fields) error {
	updates := make([]firestore.Update, 0, len(fields))
	for _, f := range fields {
		updates = append(updates, firestore.Update{Path: f.Field, Value: documentValue(f.Value)})
	}
	if _, err := s.client.Collection(s.collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("update donation: %w", firestoreError(err))
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, id string) error {
	ref := s.client.Collection(s.collection).Doc(id)
	if _, err := ref.Get(ctx); err != nil {
		return fmt.Errorf("delete donation: %w", firestoreError(err))
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("delete donation: %w", firestoreError(err))
	}
	return nil
}

// Listen attaches a snapshot listener. The first Next returns the current
// results; later calls block until the results change.
func (s *FirestoreStore) Listen(ctx context.Context, spec query.Spec) (Stream, error) {
	return &firestoreStream{it: s.lower(spec).Snapshots(ctx)}, nil
}

func (s *FirestoreStore) lower(spec query.Spec) firestore.Query {
	collection := spec.Collection
	if collection == "" {
		collection = s.collection
	}
	q := s.client.Collection(collection).Query
	for _, c := range spec.Conditions {
		q = q.Where(c.Field, string(c.Op), c.Value)
	}
	dir := firestore.Asc
	if spec.OrderBy.Descending {
		dir = firestore.Desc
	}
	q = q.OrderBy(spec.OrderBy.Field, dir)
	if spec.Limit > 0 {
		q = q.Limit(spec.Limit)
	}
	return q
}

// firestoreStream wraps a QuerySnapshotIterator. After the iterator reports an
// error it keeps returning that error, so the stream reports it once and then
// closes.
type firestoreStream struct {
	it     *firestore.QuerySnapshotIterator
	failed bool
}

func (f *firestoreStream) Next(_ context.Context) ([]models.Record, error) {
	if f.failed {
		return nil, ErrStreamClosed
	}
	snap, err := f.it.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
			return nil, ErrStreamClosed
		}
		f.failed = true
		return nil, fmt.Errorf("listen donations: %w", firestoreError(err))
	}
	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, fmt.Errorf("read donation snapshot: %w", firestoreError(err))
	}
	return fromDocuments(docs), nil
}

func (f *firestoreStream) Stop() {
	f.it.Stop()
}

func firestoreError(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %w", sentinel.ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %w", sentinel.ErrPermissionDenied, err)
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %w", sentinel.ErrFailedPrecondition, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}

func toDocument(rec models.Record) map[string]any {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	doc := map[string]any{
		models.FieldFoodType:           rec.FoodType,
		models.FieldDescription:        rec.Description,
		models.FieldQuantity:           rec.Quantity,
		models.FieldLocation:           rec.Location,
		models.FieldTags:               tags,
		models.FieldPickupInstructions: rec.PickupInstructions,
		models.FieldStatus:             string(rec.Status),
		models.FieldUrgency:            string(rec.Urgency),
		models.FieldCreatedAt:          timestampValue(rec.CreatedAt),
		models.FieldExpiryDate:         timestampValue(rec.ExpiryDate),
		models.FieldClaimedAt:          timestampValue(rec.ClaimedAt),
		models.FieldCompletedAt:        timestampValue(rec.CompletedAt),
		models.FieldDonorID:            rec.DonorID,
		models.FieldDonorName:          rec.DonorName,
		models.FieldContactInfo:        rec.ContactInfo,
	}
	if rec.ClaimedBy != "" {
		doc[models.FieldClaimedBy] = rec.ClaimedBy
	} else {
		doc[models.FieldClaimedBy] = nil
	}
	if !rec.UpdatedAt.IsMissing() {
		doc[models.FieldUpdatedAt] = timestampValue(rec.UpdatedAt)
	}
	return doc
}

// timestampValue writes a Timestamp back in the representation it was read in.
func timestampValue(ts models.Timestamp) any {
	switch ts.Kind {
	case models.TimestampInstant:
		return ts.Instant
	case models.TimestampEpoch:
		return ts.Millis
	case models.TimestampRaw:
		return ts.Raw
	}
	return nil
}

func documentValue(v any) any {
	switch value := v.(type) {
	case models.Status:
		return string(value)
	case models.Urgency:
		return string(value)
	case models.Timestamp:
		return timestampValue(value)
	}
	return v
}

func fromDocuments(docs []*firestore.DocumentSnapshot) []models.Record {
	out := make([]models.Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDocument(doc))
	}
	return out
}

func fromDocument(snap *firestore.DocumentSnapshot) models.Record {
	data := snap.Data()
	return models.Record{
		ID:                 snap.Ref.ID,
		FoodType:           stringField(data, models.FieldFoodType),
		Description:        stringField(data, models.FieldDescription),
		Quantity:           numberField(data, models.FieldQuantity),
		Location:           stringField(data, models.FieldLocation),
		Tags:               tagsField(data),
		PickupInstructions: stringField(data, models.FieldPickupInstructions),
		Status:             models.Status(stringField(data, models.FieldStatus)),
		Urgency:            models.Urgency(stringField(data, models.FieldUrgency)),
		CreatedAt:          models.TimestampOf(data[models.FieldCreatedAt]),
		ExpiryDate:         models.TimestampOf(data[models.FieldExpiryDate]),
		ClaimedBy:          stringField(data, models.FieldClaimedBy),
		ClaimedAt:          models.TimestampOf(data[models.FieldClaimedAt]),
		CompletedAt:        models.TimestampOf(data[models.FieldCompletedAt]),
		UpdatedAt:          models.TimestampOf(data[models.FieldUpdatedAt]),
		DonorID:            stringField(data, models.FieldDonorID),
		DonorName:          stringField(data, models.FieldDonorName),
		ContactInfo:        stringField(data, models.FieldContactInfo),
	}
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// numberField accepts both integer and double encodings; the web client writes
// quantity through Number() so either can appear.
func numberField(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func tagsField(data map[string]any) []string {
	raw, _ := data[models.FieldTags].([]any)
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}
