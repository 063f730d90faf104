package spatial

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasforge/gazetteer/internal/model"
)

func TestJoin_AssignsAtMostOneRegion(t *testing.T) {
	regions := []model.Region{
		boxRegion(t, "west", 0, 0, 1, 1),
		boxRegion(t, "east", 1, 0, 2, 1),
	}
	idx := NewIndex(regions, 0)

	places := []model.Place{
		{GeonameID: 1, Name: "Westville", Lon: 0.5, Lat: 0.5},
		{GeonameID: 2, Name: "Eastburg", Lon: 1.5, Lat: 0.5},
		{GeonameID: 3, Name: "Edgeton", Lon: 1.0, Lat: 0.5},
		{GeonameID: 4, Name: "Farawaystan", Lon: 5, Lat: 5},
	}

	stats, err := Join(context.Background(), idx, places, JoinOptions{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Within)
	assert.Zero(t, stats.Nearest)
	assert.Equal(t, 1, stats.Unmatched)

	assert.Equal(t, "west", places[0].RegionID)
	assert.Equal(t, model.MatchWithin, places[0].RegionMatch)
	assert.Equal(t, "east", places[1].RegionID)

	// The boundary point has exactly one owner.
	assert.NotEmpty(t, places[2].RegionID)

	assert.Empty(t, places[3].RegionID)
	assert.Equal(t, model.MatchNone, places[3].RegionMatch)
}

func TestJoin_IndependentOfWorkerCount(t *testing.T) {
	var regions []model.Region
	for x := 0; x < 8; x++ {
		regions = append(regions, boxRegion(t, fmt.Sprintf("strip-%d", x), float64(x), 0, float64(x+1), 8))
	}
	idx := NewIndex(regions, 0)

	mkPlaces := func() []model.Place {
		var out []model.Place
		for i := 0; i < 500; i++ {
			out = append(out, model.Place{
				GeonameID: int64(i),
				Lon:       float64(i%80) / 10.0,
				Lat:       float64(i%77) / 10.0,
			})
		}
		return out
	}

	serial := mkPlaces()
	_, err := Join(context.Background(), idx, serial, JoinOptions{Workers: 1})
	require.NoError(t, err)

	parallel := mkPlaces()
	_, err = Join(context.Background(), idx, parallel, JoinOptions{Workers: 8})
	require.NoError(t, err)

	require.Equal(t, serial, parallel)
}

func TestJoin_NearestFallback(t *testing.T) {
	regions := []model.Region{boxRegion(t, "coast", 0, 0, 1, 1)}
	idx := NewIndex(regions, 0)

	places := []model.Place{
		{GeonameID: 1, Name: "Inland", Lon: 0.5, Lat: 0.5},
		{GeonameID: 2, Name: "Harbor", Lon: 1.2, Lat: 0.5},
		{GeonameID: 3, Name: "Deepsea", Lon: 30, Lat: 0.5},
	}

	stats, err := Join(context.Background(), idx, places, JoinOptions{
		Workers: 1,
		Nearest: NewNearest(regions, 200),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Within)
	assert.Equal(t, 1, stats.Nearest)
	assert.Equal(t, 1, stats.Unmatched)

	assert.Equal(t, model.MatchWithin, places[0].RegionMatch)

	assert.Equal(t, "coast", places[1].RegionID)
	assert.Equal(t, model.MatchNearest, places[1].RegionMatch)

	assert.Empty(t, places[2].RegionID)
	assert.Equal(t, model.MatchNone, places[2].RegionMatch)
}

func TestJoin_CancelledContext(t *testing.T) {
	idx := NewIndex([]model.Region{boxRegion(t, "box", 0, 0, 1, 1)}, 0)
	places := make([]model.Place, 3000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Join(ctx, idx, places, JoinOptions{Workers: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJoin_EmptyInput(t *testing.T) {
	idx := NewIndex(nil, 0)
	stats, err := Join(context.Background(), idx, nil, JoinOptions{})
	require.NoError(t, err)
	assert.Zero(t, stats.Within)
	assert.Zero(t, stats.Unmatched)
}
