// Package query turns a donation Filter into a store-agnostic read specification.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"feedra/internal/donation/models"
	dErrors "feedra/pkg/domain-errors"
)

// Collection is the donation collection (Firestore) / table (Postgres) name.
const Collection = "donations"

// Op is a comparison operator. Only equality is produced today.
type Op string

const OpEqual Op = "=="

// Condition is a single field filter.
type Condition struct {
	Field string
	Op    Op
	Value string
}

// Order is the sort applied to results.
type Order struct {
	Field      string
	Descending bool
}

// Spec is an ordered, filtered read against the donation collection.
// Limit 0 means unbounded; callers that need a cap must set one.
type Spec struct {
	Collection string
	Conditions []Condition
	OrderBy    Order
	Limit      int
}

// Build constructs the Spec for f. It never mutates f, and equal filters
// always produce structurally equal specs.
func Build(f models.Filter) (Spec, error) {
	if f.Limit < 0 {
		return Spec{}, dErrors.New(dErrors.CodeValidation, "limit must not be negative")
	}

	spec := Spec{
		Collection: Collection,
		OrderBy:    Order{Field: models.FieldCreatedAt, Descending: true},
		Limit:      f.Limit,
	}

	status := strings.TrimSpace(f.Status)
	if status != "" && status != models.StatusAll {
		if !models.Status(status).IsValid() {
			return Spec{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown status %q", status))
		}
		spec.Conditions = append(spec.Conditions, Condition{Field: models.FieldStatus, Op: OpEqual, Value: status})
	}

	if owner := strings.TrimSpace(f.OwnerID); owner != "" {
		spec.Conditions = append(spec.Conditions, Condition{Field: models.FieldDonorID, Op: OpEqual, Value: owner})
	}

	return spec, nil
}

// Key renders the spec canonically, e.g. "donations?status==available&order=createdAt:desc&limit=10".
func (s Spec) Key() string {
	var b strings.Builder
	b.WriteString(s.Collection)
	b.WriteByte('?')
	for _, c := range s.Conditions {
		b.WriteString(c.Field)
		b.WriteString(string(c.Op))
		b.WriteString(c.Value)
		b.WriteByte('&')
	}
	b.WriteString("order=")
	b.WriteString(s.OrderBy.Field)
	if s.OrderBy.Descending {
		b.WriteString(":desc")
	} else {
		b.WriteString(":asc")
	}
	if s.Limit > 0 {
		b.WriteString("&limit=")
		b.WriteString(strconv.Itoa(s.Limit))
	}
	return b.String()
}

// Matches reports whether rec satisfies every condition. Used by stores that
// evaluate specs in process.
func (s Spec) Matches(rec models.Record) bool {
	for _, c := range s.Conditions {
		if c.Op != OpEqual {
			return false
		}
		var got string
		switch c.Field {
		case models.FieldStatus:
			got = string(rec.Status)
		case models.FieldDonorID:
			got = rec.DonorID
		case models.FieldClaimedBy:
			got = rec.ClaimedBy
		case models.FieldFoodType:
			got = rec.FoodType
		default:
			return false
		}
		if got != c.Value {
			return false
		}
	}
	return true
}
