package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redrace/tournament-system/models"
)

func finished(id, h, m, s, ms int) models.RaceResult {
	return models.RaceResult{
		RacerID:    id,
		Status:     models.StatusFinished,
		FinishTime: models.FinishTime{Hours: h, Minutes: m, Seconds: s, Milliseconds: ms},
	}
}

func dnf(id int, order *int) models.RaceResult {
	return models.RaceResult{RacerID: id, Status: models.StatusDNF, DNFOrder: order}
}

func ids(p Placement) []int {
	out := make([]int, len(p.Order))
	for i, e := range p.Order {
		out[i] = e.Result.RacerID
	}
	return out
}

func TestRankResults(t *testing.T) {
	tests := []struct {
		name       string
		racers     []int
		results    []models.RaceResult
		wantOrder  []int
		wantWinner *int
		wantMiddle *int
		wantLast   *int
	}{
		{
			name:       "fastest finisher wins",
			racers:     []int{1, 2},
			results:    []models.RaceResult{finished(1, 1, 0, 0, 0), finished(2, 1, 5, 0, 0)},
			wantOrder:  []int{1, 2},
			wantWinner: intPtr(1),
			wantLast:   intPtr(2),
		},
		{
			name:       "milliseconds decide",
			racers:     []int{1, 2},
			results:    []models.RaceResult{finished(1, 1, 0, 0, 2), finished(2, 1, 0, 0, 1)},
			wantOrder:  []int{2, 1},
			wantWinner: intPtr(2),
			wantLast:   intPtr(1),
		},
		{
			name:   "status precedence",
			racers: []int{1, 2, 3},
			results: []models.RaceResult{
				{RacerID: 1, Status: models.StatusDQ},
				{RacerID: 2, Status: models.StatusDNS},
				dnf(3, nil),
			},
			wantOrder:  []int{3, 2, 1},
			wantMiddle: intPtr(2),
			wantLast:   intPtr(1),
		},
		{
			name:       "dnf order ascending, missing last",
			racers:     []int{1, 2, 3},
			results:    []models.RaceResult{dnf(1, nil), dnf(2, intPtr(2)), dnf(3, intPtr(1))},
			wantOrder:  []int{3, 2, 1},
			wantMiddle: intPtr(2),
			wantLast:   intPtr(1),
		},
		{
			name:       "equal times keep racer order",
			racers:     []int{2, 1},
			results:    []models.RaceResult{finished(1, 1, 0, 0, 0), finished(2, 1, 0, 0, 0)},
			wantOrder:  []int{2, 1},
			wantWinner: intPtr(2),
			wantLast:   intPtr(1),
		},
		{
			name:       "finisher beats dnf",
			racers:     []int{1, 2, 3},
			results:    []models.RaceResult{dnf(1, intPtr(1)), finished(2, 2, 0, 0, 0), finished(3, 1, 59, 59, 999)},
			wantOrder:  []int{3, 2, 1},
			wantWinner: intPtr(3),
			wantMiddle: intPtr(2),
			wantLast:   intPtr(1),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := RankResults(tt.racers, tt.results)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOrder, ids(p))
			assert.Equal(t, tt.wantWinner, p.Winner)
			assert.Equal(t, tt.wantMiddle, p.Middle)
			assert.Equal(t, tt.wantLast, p.Last)
			for i, e := range p.Order {
				assert.Equal(t, i+1, e.Position)
			}
		})
	}
}

func TestRankResults_MissingResult(t *testing.T) {
	_, err := RankResults([]int{1, 2}, []models.RaceResult{finished(1, 1, 0, 0, 0)})
	require.ErrorIs(t, err, ErrMissingResult)
}

func TestRankResults_WinnerMatchesComputeWinner(t *testing.T) {
	tests := []struct {
		name    string
		racers  []int
		results []models.RaceResult
		want    *int
	}{
		{"fastest wins", []int{1, 2, 3}, []models.RaceResult{finished(1, 1, 0, 0, 0), finished(2, 0, 59, 59, 999), dnf(3, nil)}, intPtr(2)},
		{"nobody finished", []int{1, 2}, []models.RaceResult{dnf(1, nil), {RacerID: 2, Status: models.StatusDQ}}, nil},
		{"single finisher", []int{1, 2}, []models.RaceResult{finished(1, 2, 0, 0, 0), {RacerID: 2, Status: models.StatusDNS}}, intPtr(1)},
		{"tie follows racers order", []int{1, 2}, []models.RaceResult{finished(2, 1, 0, 0, 0), finished(1, 1, 0, 0, 0)}, intPtr(1)},
		{"tie with racer3 first in results", []int{4, 5, 6}, []models.RaceResult{finished(6, 1, 0, 0, 0), dnf(4, nil), finished(5, 1, 0, 0, 0)}, intPtr(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := RankResults(tt.racers, tt.results)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Winner)
			assert.Equal(t, p.Winner, models.ComputeWinner(tt.racers, tt.results))
		})
	}
}

func TestValidateResults(t *testing.T) {
	racers := []int{1, 2}

	assert.NoError(t, ValidateResults(racers, []models.RaceResult{finished(1, 1, 0, 0, 0), dnf(2, nil)}))
	assert.ErrorIs(t, ValidateResults(racers, []models.RaceResult{finished(1, 1, 0, 0, 0)}), ErrMissingResult)
	assert.ErrorIs(t, ValidateResults(racers, []models.RaceResult{finished(1, 1, 0, 0, 0), finished(3, 1, 0, 0, 0)}), ErrUnexpectedRacer)
	assert.ErrorIs(t, ValidateResults(racers, []models.RaceResult{finished(1, 1, 0, 0, 0), finished(1, 1, 0, 0, 0)}), ErrDuplicateResult)
	assert.ErrorIs(t, ValidateResults(racers, []models.RaceResult{finished(1, 1, 0, 0, 0), {RacerID: 2, Status: "Slow"}}), ErrInvalidStatus)
	assert.Error(t, ValidateResults(racers, []models.RaceResult{finished(1, 1, 75, 0, 0), dnf(2, nil)}))
}

func TestPlacement_Below(t *testing.T) {
	p, err := RankResults([]int{1, 2, 3}, []models.RaceResult{finished(1, 1, 0, 0, 0), finished(2, 0, 50, 0, 0), dnf(3, nil)})
	require.NoError(t, err)

	assert.Equal(t, 2, p.Below(2))
	assert.Equal(t, 1, p.Below(1))
	assert.Equal(t, 0, p.Below(3))
	assert.Equal(t, "winner", p.Role(2))
	assert.Equal(t, "middle", p.Role(1))
	assert.Equal(t, "last", p.Role(3))
}
