package service

import (
	"fmt"
	"strings"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/store"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 100
)

// ListParams is the raw paging input of list operations.
type ListParams struct {
	Skip  int
	Limit int
	Kind  string
}

func (p ListParams) filter() (store.ListFilter, error) {
	if p.Skip < 0 {
		return store.ListFilter{}, fmt.Errorf("%w: skip must not be negative", bracket.ErrInvalidInput)
	}
	limit := p.Limit
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit < 0 || limit > MaxPageLimit {
		return store.ListFilter{}, fmt.Errorf("%w: limit must be between 1 and %d", bracket.ErrInvalidInput, MaxPageLimit)
	}

	f := store.ListFilter{Skip: p.Skip, Limit: limit}
	if strings.TrimSpace(p.Kind) != "" {
		kind, err := bracket.ParseKind(p.Kind)
		if err != nil {
			return store.ListFilter{}, err
		}
		f.Kind = kind
	}
	return f, nil
}
