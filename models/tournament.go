package models

import "fmt"

// Round представляет раунд турнира. Порядок раундов фиксирован и задаётся Next().
type Round string

const (
	RoundOne       Round = "Round 1"
	RoundTwo       Round = "Round 2"
	RoundThree     Round = "Round 3"
	Quarterfinals  Round = "Quarterfinals"
	Semifinals     Round = "Semifinals"
	Final          Round = "Final"
	RoundCompleted Round = "Completed"
)

// Rounds lists every playable round in tournament order.
var Rounds = []Round{RoundOne, RoundTwo, RoundThree, Quarterfinals, Semifinals, Final}

var nextRound = map[Round]Round{
	RoundOne:      RoundTwo,
	RoundTwo:      RoundThree,
	RoundThree:    Quarterfinals,
	Quarterfinals: Semifinals,
	Semifinals:    Final,
	Final:         RoundCompleted,
}

func ParseRound(s string) (Round, error) {
	r := Round(s)
	if !r.IsValid() && r != RoundCompleted {
		return "", fmt.Errorf("unknown round %q", s)
	}
	return r, nil
}

func (r Round) IsValid() bool {
	_, ok := nextRound[r]
	return ok
}

// Next returns the round that follows r. Completed is terminal and maps to itself.
func (r Round) Next() Round {
	if next, ok := nextRound[r]; ok {
		return next
	}
	return RoundCompleted
}

func (r Round) IsTerminal() bool {
	return r == RoundCompleted
}

// IsSwiss reports whether races in r move competitors between brackets.
func (r Round) IsSwiss() bool {
	return r == RoundOne || r == RoundTwo || r == RoundThree
}

// IsLastSwiss marks the transition where the top-N cut is taken.
func (r Round) IsLastSwiss() bool {
	return r == RoundThree
}

// AwardsWinnerPoints is true for every round strictly before the semifinals.
func (r Round) AwardsWinnerPoints() bool {
	return r.IsSwiss() || r == Quarterfinals
}

// CommentatorLimit returns the maximum commentators per race, 0 meaning unlimited.
func (r Round) CommentatorLimit() int {
	if r.AwardsWinnerPoints() {
		return 2
	}
	return 0
}

type Tournament struct {
	ID           int    `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	CurrentRound Round  `json:"current_round" db:"current_round"`
}

// RoundSummary describes progress of the races in the current round.
type RoundSummary struct {
	CurrentRound    Round `json:"current_round"`
	UpcomingRaces   int   `json:"upcoming_races"`
	AwaitingResults int   `json:"awaiting_results"`
	CompletedRaces  int   `json:"completed_races"`
	CancelledRaces  int   `json:"cancelled_races"`
	CanEndRound     bool  `json:"can_end_round"`
}

// PickField returns the key under which round picks are stored for r.
func (r Round) PickField() string {
	switch r {
	case RoundOne:
		return "round1Picks"
	case RoundTwo:
		return "round2Picks"
	case RoundThree:
		return "round3Picks"
	case Quarterfinals:
		return "quarterFinalPicks"
	case Semifinals:
		return "semiFinalPicks"
	case Final:
		return "finalPick"
	}
	return ""
}
