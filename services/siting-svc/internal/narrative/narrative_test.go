package narrative

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/domain"
)

func summary() Summary {
	return Summary{
		Coverage: domain.NewCoverageImprovement(
			domain.NewCoverageResult(250, 1000),
			domain.NewCoverageResult(750, 1000),
		),
		UnderservedAreas: 2,
		UnderservedPop:   600,
	}
}

func sites() []domain.SelectedSite {
	return []domain.SelectedSite{{
		CandidateSite:                domain.CandidateSite{ID: "s1", Coords: domain.Coordinates{Lat: 1, Lon: 2}},
		SelectionOrder:               1,
		AdditionalCoverage:           500,
		CumulativeCoveragePercentage: 0.75,
	}}
}

func TestTemplate(t *testing.T) {
	text, err := Template{}.Justify(context.Background(), sites(), summary())
	require.NoError(t, err)

	assert.Contains(t, text, "Recommended 1 new facility")
	assert.Contains(t, text, "25.0% to 75.0%")
	assert.Contains(t, text, "2 underserved areas")
	assert.Contains(t, text, "Site s1")
}

func TestTemplate_NoSites(t *testing.T) {
	s := summary()
	s.Reason = domain.ReasonNoSuitableCandidates
	text, err := Template{}.Justify(context.Background(), nil, s)
	require.NoError(t, err)
	assert.Contains(t, text, "no_suitable_candidates")
}

func TestWithFallback(t *testing.T) {
	ctx := context.Background()
	want, _ := Template{}.Justify(ctx, sites(), summary())

	t.Run("primary succeeds", func(t *testing.T) {
		g := WithFallback(GeneratorFunc(func(context.Context, []domain.SelectedSite, Summary) (string, error) {
			return "custom", nil
		}), time.Second)
		text, err := g.Justify(ctx, sites(), summary())
		require.NoError(t, err)
		assert.Equal(t, "custom", text)
	})

	t.Run("primary fails", func(t *testing.T) {
		g := WithFallback(GeneratorFunc(func(context.Context, []domain.SelectedSite, Summary) (string, error) {
			return "", errors.New("provider down")
		}), time.Second)
		text, err := g.Justify(ctx, sites(), summary())
		require.NoError(t, err)
		assert.Equal(t, want, text)
	})

	t.Run("primary times out", func(t *testing.T) {
		g := WithFallback(GeneratorFunc(func(ctx context.Context, _ []domain.SelectedSite, _ Summary) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}), 10*time.Millisecond)
		text, err := g.Justify(ctx, sites(), summary())
		require.NoError(t, err)
		assert.Equal(t, want, text)
	})

	t.Run("nil primary", func(t *testing.T) {
		text, err := WithFallback(nil, 0).Justify(ctx, sites(), summary())
		require.NoError(t, err)
		assert.Equal(t, want, text)
	})
}
