package bracket

import (
	"fmt"
	"strings"
)

// Kind is the catalog category a tournament runs over.
type Kind string

const (
	KindSets        Kind = "sets"
	KindMinifigures Kind = "minifigures"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSets, KindMinifigures:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown type %q, expected sets or minifigures", ErrInvalidInput, s)
}

func (k Kind) Valid() bool {
	return k == KindSets || k == KindMinifigures
}

// ItemRef points at exactly one catalog item: a set or a minifigure, never both.
type ItemRef struct {
	SetID        *int64  `db:"set_id" json:"set_id,omitempty"`
	MinifigureID *string `db:"minifigure_id" json:"minifigure_id,omitempty"`
}

func SetRef(id int64) ItemRef {
	return ItemRef{SetID: &id}
}

func MinifigureRef(id string) ItemRef {
	return ItemRef{MinifigureID: &id}
}

// Kind reports which kind the reference points at, failing when the
// reference is empty or carries both ids.
func (r ItemRef) Kind() (Kind, error) {
	switch {
	case r.SetID != nil && r.MinifigureID != nil:
		return "", fmt.Errorf("%w: both set_id and minifigure_id supplied", ErrInvalidItemRef)
	case r.SetID != nil:
		return KindSets, nil
	case r.MinifigureID != nil:
		if strings.TrimSpace(*r.MinifigureID) == "" {
			return "", fmt.Errorf("%w: minifigure_id is blank", ErrInvalidItemRef)
		}
		return KindMinifigures, nil
	}
	return "", fmt.Errorf("%w: one of set_id or minifigure_id is required", ErrInvalidItemRef)
}

// MatchKind checks the reference is well formed and belongs to kind.
func (r ItemRef) MatchKind(kind Kind) error {
	got, err := r.Kind()
	if err != nil {
		return err
	}
	if got != kind {
		return fmt.Errorf("%w: %s item supplied for a %s tournament", ErrKindMismatch, got, kind)
	}
	return nil
}

func (r ItemRef) String() string {
	switch {
	case r.SetID != nil:
		return fmt.Sprintf("set:%d", *r.SetID)
	case r.MinifigureID != nil:
		return "minifigure:" + *r.MinifigureID
	}
	return "none"
}
