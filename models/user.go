package models

type UserRole string

const (
	RoleRunner      UserRole = "runner"
	RoleCommentator UserRole = "commentator"
)

func (r UserRole) IsValid() bool {
	return r == RoleRunner || r == RoleCommentator
}

// Bracket is a competitor's current tier.
type Bracket string

const (
	BracketNormal     Bracket = "Normal"
	BracketAscension  Bracket = "Ascension"
	BracketExhibition Bracket = "Exhibition"
	BracketPlayoffs   Bracket = "Playoffs"
)

func (b Bracket) IsValid() bool {
	switch b {
	case BracketNormal, BracketAscension, BracketExhibition, BracketPlayoffs:
		return true
	}
	return false
}

// DefaultBestTimeMs is the best time assigned before a runner has finished a race (2h30m).
const DefaultBestTimeMs int64 = 9_000_000

type User struct {
	ID              int      `json:"id"`
	DiscordUsername string   `json:"discord_username"`
	DisplayName     string   `json:"display_name"`
	Role            UserRole `json:"role"`
	IsAdmin         bool     `json:"is_admin"`
	Pronouns        *string  `json:"pronouns,omitempty"`
	Country         *string  `json:"country,omitempty"`
	CurrentBracket  Bracket  `json:"current_bracket"`
	Points          int      `json:"points"`
	TieBreaker      int      `json:"tie_breaker"`
	HasDNF          bool     `json:"has_dnf"`
	BestTimeMs      int64    `json:"best_time_ms"`
	CurrentGroupID  *int     `json:"current_group_id,omitempty"`
}

// Name returns the display name, falling back to the discord username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.DiscordUsername
}
