package brackets

import "github.com/redrace/tournament-system/models"

const WinnerPoints = 4

// Move describes a bracket change of one competitor.
type Move struct {
	UserID int            `json:"user_id"`
	From   models.Bracket `json:"from"`
	To     models.Bracket `json:"to"`
}

// NextBracket returns the bracket a competitor in current moves to after a race of round
// in which they took the given placement role.
func NextBracket(round models.Round, current models.Bracket, role string) models.Bracket {
	switch current {
	case models.BracketNormal:
		if role == "winner" {
			return models.BracketAscension
		}
	case models.BracketAscension:
		switch role {
		case "winner":
			if round == models.RoundTwo {
				return models.BracketExhibition
			}
			return models.BracketPlayoffs
		case "last":
			return models.BracketNormal
		}
	case models.BracketExhibition:
		return models.BracketPlayoffs
	}
	return current
}

// ApplyMovement updates the brackets of the racers of one race. start holds each racer's
// bracket at the beginning of the round so that a batch of races is applied consistently.
// Non-Swiss rounds leave brackets untouched.
func ApplyMovement(round models.Round, p Placement, users map[int]*models.User, start map[int]models.Bracket) []Move {
	if !round.IsSwiss() {
		return nil
	}
	var moves []Move
	for _, e := range p.Order {
		u, ok := users[e.Result.RacerID]
		if !ok {
			continue
		}
		from, ok := start[u.ID]
		if !ok {
			from = u.CurrentBracket
		}
		to := NextBracket(round, from, p.Role(u.ID))
		if to == u.CurrentBracket {
			continue
		}
		moves = append(moves, Move{UserID: u.ID, From: u.CurrentBracket, To: to})
		u.CurrentBracket = to
	}
	return moves
}

// ApplyCompletion awards the per-race points and tie-break values.
func ApplyCompletion(round models.Round, p Placement, users map[int]*models.User) {
	for _, e := range p.Order {
		u, ok := users[e.Result.RacerID]
		if !ok {
			continue
		}
		if p.Winner != nil && *p.Winner == u.ID && round.AwardsWinnerPoints() {
			u.Points += WinnerPoints
		}
		u.TieBreaker += p.Below(u.ID)
		switch e.Result.Status {
		case models.StatusDNF:
			u.HasDNF = true
		case models.StatusFinished:
			if ms := e.Result.FinishTime.TotalMs(); ms < u.BestTimeMs {
				u.BestTimeMs = ms
			}
		}
	}
}
