package models

type Group struct {
	ID            int      `json:"id"`
	GroupNumber   int      `json:"group_number"`
	Members       []int    `json:"members"`
	Round         Round    `json:"round"`
	Bracket       *Bracket `json:"bracket,omitempty"`
	RaceStartTime *int64   `json:"race_start_time,omitempty"`
	CurrentRaceID *int     `json:"current_race_id,omitempty"`
}

func (g *Group) HasMember(userID int) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}
