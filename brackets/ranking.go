package brackets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/redrace/tournament-system/models"
)

var (
	ErrMissingResult   = errors.New("racer has no result")
	ErrUnexpectedRacer = errors.New("result for a racer not in the race")
	ErrDuplicateResult = errors.New("duplicate result for racer")
	ErrInvalidStatus   = errors.New("invalid result status")
)

// Entry is one racer's position in a ranked race.
type Entry struct {
	Position int               `json:"position"`
	Result   models.RaceResult `json:"result"`
}

// Placement is the best-to-worst order of a race.
type Placement struct {
	Order  []Entry `json:"order"`
	Winner *int    `json:"winner,omitempty"`
	Middle *int    `json:"middle,omitempty"`
	Last   *int    `json:"last,omitempty"`
}

// Role returns the placement role of a racer: "winner", "middle", "last" or "".
func (p Placement) Role(racerID int) string {
	switch {
	case p.Winner != nil && *p.Winner == racerID:
		return "winner"
	case p.Middle != nil && *p.Middle == racerID:
		return "middle"
	case p.Last != nil && *p.Last == racerID:
		return "last"
	}
	return ""
}

// Below returns how many racers are ranked under racerID.
func (p Placement) Below(racerID int) int {
	for i, e := range p.Order {
		if e.Result.RacerID == racerID {
			return len(p.Order) - i - 1
		}
	}
	return 0
}

// ValidateResults checks that results cover exactly the given racers with valid statuses.
func ValidateResults(racers []int, results []models.RaceResult) error {
	expected := make(map[int]bool, len(racers))
	for _, id := range racers {
		expected[id] = false
	}
	for _, res := range results {
		seen, ok := expected[res.RacerID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnexpectedRacer, res.RacerID)
		}
		if seen {
			return fmt.Errorf("%w: %d", ErrDuplicateResult, res.RacerID)
		}
		if !res.Status.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, res.Status)
		}
		if res.Status == models.StatusFinished {
			if err := res.FinishTime.Validate(); err != nil {
				return err
			}
		}
		expected[res.RacerID] = true
	}
	for _, id := range racers {
		if !expected[id] {
			return fmt.Errorf("%w: %d", ErrMissingResult, id)
		}
	}
	return nil
}

// RankResults orders the results of a race best to worst.
// Finished < DNF < DNS < DQ; финишировавшие по времени, DNF по dnfOrder (без него в конце).
// Равные позиции сохраняют порядок racers.
func RankResults(racers []int, results []models.RaceResult) (Placement, error) {
	byRacer := make(map[int]models.RaceResult, len(results))
	for _, res := range results {
		byRacer[res.RacerID] = res
	}

	ordered := make([]models.RaceResult, 0, len(racers))
	for _, id := range racers {
		res, ok := byRacer[id]
		if !ok {
			return Placement{}, fmt.Errorf("%w: %d", ErrMissingResult, id)
		}
		ordered = append(ordered, res)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return less(ordered[i], ordered[j])
	})

	p := Placement{Order: make([]Entry, len(ordered))}
	for i, res := range ordered {
		p.Order[i] = Entry{Position: i + 1, Result: res}
	}
	if len(ordered) == 0 {
		return p, nil
	}

	if ordered[0].Status == models.StatusFinished {
		p.Winner = intPtr(ordered[0].RacerID)
	}
	if len(ordered) == 3 {
		p.Middle = intPtr(ordered[1].RacerID)
	}
	if len(ordered) > 1 {
		p.Last = intPtr(ordered[len(ordered)-1].RacerID)
	}
	return p, nil
}

func less(a, b models.RaceResult) bool {
	pa, pb := a.Status.Precedence(), b.Status.Precedence()
	if pa != pb {
		return pa < pb
	}
	switch a.Status {
	case models.StatusFinished:
		return a.FinishTime.TotalMs() < b.FinishTime.TotalMs()
	case models.StatusDNF:
		if a.DNFOrder == nil {
			return false
		}
		if b.DNFOrder == nil {
			return true
		}
		return *a.DNFOrder < *b.DNFOrder
	}
	return false
}

func intPtr(v int) *int {
	return &v
}
