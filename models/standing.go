package models

// Standing is one row of the runner standings table.
type Standing struct {
	Rank        int     `json:"rank"`
	UserID      int     `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Bracket     Bracket `json:"bracket"`
	Points      int     `json:"points"`
	TieBreaker  int     `json:"tie_breaker"`
	HasDNF      bool    `json:"has_dnf"`
	BestTimeMs  int64   `json:"best_time_ms"`
}

// Cut is the result of taking the top N runners after the Swiss rounds.
type Cut struct {
	Size      int        `json:"size"`
	Qualified []Standing `json:"qualified"`
	Tied      []Standing `json:"tied"`
}

type EndRoundResult struct {
	PreviousRound Round  `json:"previous_round"`
	NextRound     Round  `json:"next_round"`
	RacesApplied  int    `json:"races_applied"`
	UsersMoved    int    `json:"users_moved"`
	Cut           *Cut   `json:"cut,omitempty"`
	ArchiveURL    string `json:"archive_url,omitempty"`
}
