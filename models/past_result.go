package models

type Medalist struct {
	Name   string `json:"name"`
	UserID *int   `json:"user_id,omitempty"`
}

type PastResult struct {
	ID              int      `json:"id"`
	TournamentYear  int      `json:"tournament_year"`
	Gold            Medalist `json:"gold"`
	Silver          Medalist `json:"silver"`
	Bronze          Medalist `json:"bronze"`
	SpotlightVideos []string `json:"spotlight_videos"`
}
