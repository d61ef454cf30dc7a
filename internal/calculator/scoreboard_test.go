package calculator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmpulse/internal/model"
	"cmpulse/internal/store"
)

func seedBoard(t *testing.T) (*store.Memory, time.Time) {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemory()
	require.NoError(t, repo.SaveScoringConfig(ctx, model.DefaultScoringConfig()))

	alpha, err := repo.EnsureTeam(ctx, "Alpha")
	require.NoError(t, err)
	beta, err := repo.EnsureTeam(ctx, "Beta")
	require.NoError(t, err)
	jane, err := repo.UpsertMentor(ctx, &model.Mentor{ExternalID: "JANE DOE", DisplayName: "Jane Doe", TeamID: alpha.ID})
	require.NoError(t, err)
	john, err := repo.UpsertMentor(ctx, &model.Mentor{ExternalID: "JOHN ROE", DisplayName: "John Roe", TeamID: beta.ID})
	require.NoError(t, err)

	latest := time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	records := []*model.MetricRecord{
		{MentorID: john.ID, TeamID: beta.ID, PeriodDate: latest, WeekOfMonth: 4, Checksum: "a",
			MetricValues: model.MetricValues{CCPct: model.Float(40)}},
		{MentorID: jane.ID, TeamID: alpha.ID, PeriodDate: latest, WeekOfMonth: 4, Checksum: "b",
			MetricValues: model.MetricValues{CCPct: model.Float(80), SCPct: model.Float(15), UPPct: model.Float(20), FixedPct: model.Float(60)}},
		{MentorID: jane.ID, TeamID: alpha.ID, PeriodDate: earlier, WeekOfMonth: 1, Checksum: "c",
			MetricValues: model.MetricValues{CCPct: model.Float(20)}},
	}
	for _, rec := range records {
		require.NoError(t, repo.CreateMetricRecord(ctx, rec))
	}
	return repo, earlier
}

func TestScoreboard_LatestPeriod(t *testing.T) {
	t.Parallel()
	repo, _ := seedBoard(t)

	board, err := NewCalculator(repo).Scoreboard(context.Background(), Query{})
	require.NoError(t, err)

	assert.Equal(t, "2024-03-28", board.PeriodDate)
	require.Len(t, board.Rows, 2)
	assert.Equal(t, "Jane Doe", board.Rows[0].DisplayName)
	assert.Equal(t, "Alpha", board.Rows[0].TeamName)
	assert.Equal(t, model.StatusAbove, board.Rows[0].Scorecard.Status)
	assert.Equal(t, 4, board.Rows[0].Scorecard.TargetsHit)
	assert.Equal(t, "John Roe", board.Rows[1].DisplayName)
	assert.Equal(t, model.StatusBelow, board.Rows[1].Scorecard.Status)
	assert.InDelta(t, 20, board.Rows[1].Scorecard.WeightedScore, 1e-9)
	assert.Equal(t, 1, board.StatusCounts[model.StatusAbove])
	assert.Equal(t, 1, board.StatusCounts[model.StatusBelow])
}

func TestScoreboard_ExplicitPeriodUsesPacedTargets(t *testing.T) {
	t.Parallel()
	repo, earlier := seedBoard(t)

	board, err := NewCalculator(repo).Scoreboard(context.Background(), Query{PeriodDate: &earlier})
	require.NoError(t, err)

	require.Len(t, board.Rows, 1)
	card := board.Rows[0].Scorecard
	assert.InDelta(t, 20, card.Targets.CC, 1e-9)
	assert.Equal(t, 1, card.TargetsHit)
	assert.InDelta(t, 40, card.WeightedScore, 1e-9)
}

func TestScoreboard_TeamFilterAndEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := seedBoard(t)

	teams, err := repo.ListTeams(ctx)
	require.NoError(t, err)
	var betaID string
	for _, team := range teams {
		if team.Name == "Beta" {
			betaID = team.ID
		}
	}

	board, err := NewCalculator(repo).Scoreboard(ctx, Query{TeamID: betaID})
	require.NoError(t, err)
	require.Len(t, board.Rows, 1)
	assert.Equal(t, "John Roe", board.Rows[0].DisplayName)

	empty := store.NewMemory()
	require.NoError(t, empty.SaveScoringConfig(ctx, model.DefaultScoringConfig()))
	board, err = NewCalculator(empty).Scoreboard(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, board.PeriodDate)
	assert.Empty(t, board.Rows)
}

func TestScoreboard_MissingConfig(t *testing.T) {
	t.Parallel()

	_, err := NewCalculator(store.NewMemory()).Scoreboard(context.Background(), Query{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
