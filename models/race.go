package models

import "fmt"

type ResultStatus string

const (
	StatusFinished ResultStatus = "Finished"
	StatusDNF      ResultStatus = "DNF"
	StatusDNS      ResultStatus = "DNS"
	StatusDQ       ResultStatus = "DQ"
)

// Precedence orders statuses for ranking, lower ranks better.
func (s ResultStatus) Precedence() int {
	switch s {
	case StatusFinished:
		return 0
	case StatusDNF:
		return 1
	case StatusDNS:
		return 2
	case StatusDQ:
		return 3
	}
	return 4
}

func (s ResultStatus) IsValid() bool {
	return s.Precedence() < 4
}

type FinishTime struct {
	Hours        int `json:"hours"`
	Minutes      int `json:"minutes"`
	Seconds      int `json:"seconds"`
	Milliseconds int `json:"milliseconds"`
}

func (f FinishTime) TotalMs() int64 {
	return int64(f.Hours)*3_600_000 + int64(f.Minutes)*60_000 + int64(f.Seconds)*1_000 + int64(f.Milliseconds)
}

func (f FinishTime) Validate() error {
	if f.Hours < 0 || f.Minutes < 0 || f.Minutes > 59 || f.Seconds < 0 || f.Seconds > 59 || f.Milliseconds < 0 || f.Milliseconds > 999 {
		return fmt.Errorf("finish time out of range: %s", f)
	}
	return nil
}

func (f FinishTime) String() string {
	return fmt.Sprintf("%d:%02d:%02d.%03d", f.Hours, f.Minutes, f.Seconds, f.Milliseconds)
}

// FinishTimeFromMs splits a millisecond total back into its parts.
func FinishTimeFromMs(ms int64) FinishTime {
	return FinishTime{
		Hours:        int(ms / 3_600_000),
		Minutes:      int(ms % 3_600_000 / 60_000),
		Seconds:      int(ms % 60_000 / 1_000),
		Milliseconds: int(ms % 1_000),
	}
}

type RaceResult struct {
	RacerID    int          `json:"racer_id"`
	Status     ResultStatus `json:"status"`
	FinishTime FinishTime   `json:"finish_time"`
	DNFOrder   *int         `json:"dnf_order,omitempty"`
}

type Race struct {
	ID              int          `json:"id"`
	RaceTimeID      *string      `json:"race_time_id,omitempty"`
	Racer1ID        int          `json:"racer1_id"`
	Racer2ID        int          `json:"racer2_id"`
	Racer3ID        *int         `json:"racer3_id,omitempty"`
	RaceDateTime    int64        `json:"race_date_time"`
	RaceSubmitted   int64        `json:"race_submitted"`
	Round           Round        `json:"round"`
	Bracket         Bracket      `json:"bracket"`
	Commentators    []int        `json:"commentators"`
	Completed       bool         `json:"completed"`
	Cancelled       bool         `json:"cancelled"`
	Results         []RaceResult `json:"results"`
	WinnerID        *int         `json:"winner_id,omitempty"`
	RestreamPlanned bool         `json:"restream_planned"`
	RestreamChannel *string      `json:"restream_channel,omitempty"`
	RestreamerID    *int         `json:"restreamer_id,omitempty"`
}

// Racers returns the racer ids in submission order.
func (r *Race) Racers() []int {
	ids := []int{r.Racer1ID, r.Racer2ID}
	if r.Racer3ID != nil {
		ids = append(ids, *r.Racer3ID)
	}
	return ids
}

func (r *Race) HasRacer(userID int) bool {
	for _, id := range r.Racers() {
		if id == userID {
			return true
		}
	}
	return false
}

// ComputeWinner returns the Finished racer with the smallest time, or nil when nobody finished.
// Равные времена: побеждает тот, кто раньше в racers, как в ранжировании гонки.
func ComputeWinner(racers []int, results []RaceResult) *int {
	byRacer := make(map[int]RaceResult, len(results))
	for _, res := range results {
		byRacer[res.RacerID] = res
	}
	var winner *int
	var best int64
	for _, id := range racers {
		res, ok := byRacer[id]
		if !ok || res.Status != StatusFinished {
			continue
		}
		ms := res.FinishTime.TotalMs()
		if winner == nil || ms < best {
			winner = &id
			best = ms
		}
	}
	return winner
}

// SameResults reports whether two result sets describe the same outcome, ignoring order.
func SameResults(a, b []RaceResult) bool {
	if len(a) != len(b) {
		return false
	}
	byRacer := make(map[int]RaceResult, len(a))
	for _, res := range a {
		byRacer[res.RacerID] = res
	}
	for _, res := range b {
		other, ok := byRacer[res.RacerID]
		if !ok || other.Status != res.Status || other.FinishTime != res.FinishTime {
			return false
		}
		if (other.DNFOrder == nil) != (res.DNFOrder == nil) {
			return false
		}
		if other.DNFOrder != nil && *other.DNFOrder != *res.DNFOrder {
			return false
		}
	}
	return true
}
