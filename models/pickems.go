package models

const (
	PointsPerCorrectPick = 5
	PointsPerTopPick     = 20
)

type Pickems struct {
	ID               int             `json:"id"`
	UserID           int             `json:"user_id"`
	TopPicks         []int           `json:"top_picks"`
	OverallWinner    *int            `json:"overall_winner,omitempty"`
	BestTimeWho      *int            `json:"best_time_who,omitempty"`
	ClosestTimeMs    *int64          `json:"closest_time_ms,omitempty"`
	RoundPicks       map[Round][]int `json:"round_picks"`
	FinalPick        *int            `json:"final_pick,omitempty"`
	Points           int             `json:"points"`
	TopPointsAwarded bool            `json:"top_points_awarded"`
	ScoredRaces      []int           `json:"scored_races"`
}

// PicksFor returns the picks registered for round r. Final picks are stored separately.
func (p *Pickems) PicksFor(r Round) []int {
	if r == Final {
		if p.FinalPick == nil {
			return nil
		}
		return []int{*p.FinalPick}
	}
	return p.RoundPicks[r]
}

func (p *Pickems) HasScored(raceID int) bool {
	for _, id := range p.ScoredRaces {
		if id == raceID {
			return true
		}
	}
	return false
}

// ScoreRace awards PointsPerCorrectPick when winner is among the picks for round
// and the race was not scored before. Returns true when the entry changed.
func (p *Pickems) ScoreRace(raceID int, round Round, winner int) bool {
	if p.HasScored(raceID) {
		return false
	}
	for _, pick := range p.PicksFor(round) {
		if pick == winner {
			p.Points += PointsPerCorrectPick
			p.ScoredRaces = append(p.ScoredRaces, raceID)
			return true
		}
	}
	return false
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      int    `json:"user_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
}
