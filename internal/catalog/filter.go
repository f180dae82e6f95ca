package catalog

import (
	"fmt"
	"strings"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
)

type TagLogic string

const (
	TagLogicAnd TagLogic = "AND"
	TagLogicOr  TagLogic = "OR"
)

// Filter narrows the catalog down to tournament candidates. Zero values mean
// "no constraint".
type Filter struct {
	Search        string   `json:"search,omitempty"`
	TagNames      []string `json:"tag_names,omitempty"`
	TagLogic      TagLogic `json:"tag_logic,omitempty"`
	MinPrice      *float64 `json:"min_price,omitempty"`
	MaxPrice      *float64 `json:"max_price,omitempty"`
	MinPieceCount *int     `json:"min_piece_count,omitempty"`
	MaxPieceCount *int     `json:"max_piece_count,omitempty"`
}

// Normalized trims the search text, drops blank and repeated tag names and
// upper-cases the tag logic, defaulting it to AND.
func (f Filter) Normalized() Filter {
	f.Search = strings.TrimSpace(f.Search)

	seen := make(map[string]bool, len(f.TagNames))
	var names []string
	for _, name := range f.TagNames {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	f.TagNames = names

	f.TagLogic = TagLogic(strings.ToUpper(strings.TrimSpace(string(f.TagLogic))))
	if f.TagLogic == "" {
		f.TagLogic = TagLogicAnd
	}
	return f
}

// Validate checks a normalized filter against the kind it will run on.
func (f Filter) Validate(kind bracket.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown type %q", bracket.ErrInvalidFilter, kind)
	}
	if f.TagLogic != TagLogicAnd && f.TagLogic != TagLogicOr {
		return fmt.Errorf("%w: tag_logic must be AND or OR", bracket.ErrInvalidFilter)
	}
	if err := checkRange("price", f.MinPrice, f.MaxPrice); err != nil {
		return err
	}
	if kind != bracket.KindSets && (f.MinPieceCount != nil || f.MaxPieceCount != nil) {
		return fmt.Errorf("%w: piece count filters only apply to sets", bracket.ErrInvalidFilter)
	}
	return checkRange("piece_count", f.MinPieceCount, f.MaxPieceCount)
}

func checkRange[T int | float64](name string, lo, hi *T) error {
	if lo != nil && *lo < 0 {
		return fmt.Errorf("%w: min_%s must not be negative", bracket.ErrInvalidFilter, name)
	}
	if hi != nil && *hi < 0 {
		return fmt.Errorf("%w: max_%s must not be negative", bracket.ErrInvalidFilter, name)
	}
	if lo != nil && hi != nil && *lo > *hi {
		return fmt.Errorf("%w: min_%s is greater than max_%s", bracket.ErrInvalidFilter, name, name)
	}
	return nil
}
