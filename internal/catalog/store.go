package catalog

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Store answers candidate lookups against the catalog tables.
type Store struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewStore(db *sqlx.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "catalog").Logger()}
}

// table layout per kind
type source struct {
	table    string
	idColumn string
	tagLink  string
	tagID    string
}

var sources = map[bracket.Kind]source{
	bracket.KindSets:        {table: "sets c", idColumn: "c.set_id", tagLink: "set_tags", tagID: "set_id"},
	bracket.KindMinifigures: {table: "minifigures c", idColumn: "c.minifigure_id", tagLink: "minifigure_tags", tagID: "minifigure_id"},
}

// FindCandidates returns references to every item of kind matching filter.
// An empty result is not an error.
func (s *Store) FindCandidates(ctx context.Context, kind bracket.Kind, filter Filter) ([]bracket.ItemRef, error) {
	filter = filter.Normalized()
	if err := filter.Validate(kind); err != nil {
		return nil, err
	}

	query, err := candidateQuery(kind, filter)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate query: %w", err)
	}

	var refs []bracket.ItemRef
	switch kind {
	case bracket.KindSets:
		var ids []int64
		if err := s.db.SelectContext(ctx, &ids, sqlStr, args...); err != nil {
			return nil, fmt.Errorf("failed to query sets: %w", err)
		}
		for _, id := range ids {
			refs = append(refs, bracket.SetRef(id))
		}
	case bracket.KindMinifigures:
		var ids []string
		if err := s.db.SelectContext(ctx, &ids, sqlStr, args...); err != nil {
			return nil, fmt.Errorf("failed to query minifigures: %w", err)
		}
		for _, id := range ids {
			refs = append(refs, bracket.MinifigureRef(id))
		}
	}

	s.logger.Debug().
		Str("kind", string(kind)).
		Int("candidates", len(refs)).
		Msg("candidate pool resolved")
	return refs, nil
}

func candidateQuery(kind bracket.Kind, filter Filter) (sq.SelectBuilder, error) {
	src, ok := sources[kind]
	if !ok {
		return sq.SelectBuilder{}, fmt.Errorf("%w: unknown type %q", bracket.ErrInvalidFilter, kind)
	}

	query := sq.Select(src.idColumn).From(src.table).OrderBy(src.idColumn)

	if filter.Search != "" {
		query = query.Where(sq.Like{"c.name": "%" + filter.Search + "%"})
	}
	if filter.MinPrice != nil {
		query = query.Where(sq.GtOrEq{"c.price": *filter.MinPrice})
	}
	if filter.MaxPrice != nil {
		query = query.Where(sq.LtOrEq{"c.price": *filter.MaxPrice})
	}
	if filter.MinPieceCount != nil {
		query = query.Where(sq.GtOrEq{"c.piece_count": *filter.MinPieceCount})
	}
	if filter.MaxPieceCount != nil {
		query = query.Where(sq.LtOrEq{"c.piece_count": *filter.MaxPieceCount})
	}

	if len(filter.TagNames) > 0 {
		sub := sq.Select("lt."+src.tagID).
			From(src.tagLink+" lt").
			Join("tags tg ON tg.tag_id = lt.tag_id").
			Where(sq.Eq{"lower(tg.name)": filter.TagNames})
		if filter.TagLogic == TagLogicAnd {
			sub = sub.GroupBy("lt."+src.tagID).
				Having("COUNT(DISTINCT tg.tag_id) = ?", len(filter.TagNames))
		}
		subSQL, subArgs, err := sub.ToSql()
		if err != nil {
			return sq.SelectBuilder{}, fmt.Errorf("failed to build tag filter: %w", err)
		}
		query = query.Where(src.idColumn+" IN ("+subSQL+")", subArgs...)
	}

	return query, nil
}
