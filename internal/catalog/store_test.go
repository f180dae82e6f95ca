package catalog

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/testutil"
	"github.com/AdamBeresnev/brick-bracket/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setIDs(refs []bracket.ItemRef) []int64 {
	ids := make([]int64, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, *r.SetID)
	}
	return ids
}

func TestFindCandidates_Sets(t *testing.T) {
	database := testutil.NewDB(t)
	store := NewStore(database, zerolog.Nop())

	testutil.SeedSet(t, database, 1, "Medieval Castle", 99.99, 1500, "castle", "knights")
	testutil.SeedSet(t, database, 2, "Castle Gate", 29.99, 300, "castle")
	testutil.SeedSet(t, database, 3, "Pirate Ship", 149.99, 2500, "pirates")
	testutil.SeedSet(t, database, 4, "Knight Outpost", 19.99, 150, "knights")

	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{name: "no filter", filter: Filter{}, want: []int64{1, 2, 3, 4}},
		{name: "search", filter: Filter{Search: "castle"}, want: []int64{1, 2}},
		{name: "tags and", filter: Filter{TagNames: []string{"castle", "knights"}}, want: []int64{1}},
		{name: "tags or", filter: Filter{TagNames: []string{"castle", "knights"}, TagLogic: "or"}, want: []int64{1, 2, 4}},
		{name: "tag names are case insensitive", filter: Filter{TagNames: []string{"PIRATES"}}, want: []int64{3}},
		{name: "price range", filter: Filter{MinPrice: utils.Ptr(20.0), MaxPrice: utils.Ptr(100.0)}, want: []int64{1, 2}},
		{name: "piece count", filter: Filter{MinPieceCount: utils.Ptr(1000)}, want: []int64{1, 3}},
		{name: "combined", filter: Filter{Search: "castle", MaxPieceCount: utils.Ptr(500)}, want: []int64{2}},
		{name: "unknown tag", filter: Filter{TagNames: []string{"space"}}, want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, err := store.FindCandidates(context.Background(), bracket.KindSets, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, setIDs(refs))
			for _, r := range refs {
				assert.Nil(t, r.MinifigureID)
			}
		})
	}
}

func TestFindCandidates_Minifigures(t *testing.T) {
	database := testutil.NewDB(t)
	store := NewStore(database, zerolog.Nop())

	testutil.SeedMinifigure(t, database, "cas001", "Black Knight", utils.Ptr(5.0), "castle")
	testutil.SeedMinifigure(t, database, "cas002", "Wizard", nil, "castle")
	testutil.SeedMinifigure(t, database, "pi001", "Captain", utils.Ptr(12.0), "pirates")

	refs, err := store.FindCandidates(context.Background(), bracket.KindMinifigures, Filter{TagNames: []string{"castle"}})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "cas001", *refs[0].MinifigureID)
	assert.Equal(t, "cas002", *refs[1].MinifigureID)

	// Items without a price drop out of price filters
	refs, err = store.FindCandidates(context.Background(), bracket.KindMinifigures, Filter{MaxPrice: utils.Ptr(10.0)})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "cas001", *refs[0].MinifigureID)

	_, err = store.FindCandidates(context.Background(), bracket.KindMinifigures, Filter{MinPieceCount: utils.Ptr(1)})
	assert.ErrorIs(t, err, bracket.ErrInvalidFilter)
}

func TestFilterValidate(t *testing.T) {
	tests := []struct {
		name    string
		kind    bracket.Kind
		filter  Filter
		wantErr bool
	}{
		{name: "empty", kind: bracket.KindSets, filter: Filter{}},
		{name: "bad logic", kind: bracket.KindSets, filter: Filter{TagLogic: "XOR"}, wantErr: true},
		{name: "negative price", kind: bracket.KindSets, filter: Filter{MinPrice: utils.Ptr(-1.0)}, wantErr: true},
		{name: "inverted pieces", kind: bracket.KindSets, filter: Filter{MinPieceCount: utils.Ptr(10), MaxPieceCount: utils.Ptr(5)}, wantErr: true},
		{name: "equal bounds", kind: bracket.KindSets, filter: Filter{MinPrice: utils.Ptr(10.0), MaxPrice: utils.Ptr(10.0)}},
		{name: "unknown kind", kind: "bricks", filter: Filter{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Normalized().Validate(tt.kind)
			if tt.wantErr {
				assert.ErrorIs(t, err, bracket.ErrInvalidFilter)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFilterNormalized(t *testing.T) {
	f := Filter{Search: "  castle ", TagNames: []string{"Castle", " castle", "", "Knights"}, TagLogic: " or "}.Normalized()

	assert.Equal(t, "castle", f.Search)
	assert.Equal(t, []string{"castle", "knights"}, f.TagNames)
	assert.Equal(t, TagLogicOr, f.TagLogic)
	assert.Equal(t, TagLogicAnd, Filter{}.Normalized().TagLogic)
}
