// Package stats holds read-only aggregations over races and pickems entries.
package stats

import (
	"sort"

	"github.com/samber/lo"

	"github.com/redrace/tournament-system/models"
)

type TimeEntry struct {
	UserID      int               `json:"user_id"`
	DisplayName string            `json:"display_name"`
	RaceID      int               `json:"race_id"`
	Round       models.Round      `json:"round"`
	TimeMs      int64             `json:"time_ms"`
	Time        models.FinishTime `json:"time"`
}

type AverageFinish struct {
	Key       string `json:"key"`
	AverageMs int64  `json:"average_ms"`
	Count     int    `json:"count"`
}

type WinRate struct {
	UserID      int     `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Races       int     `json:"races"`
	Wins        int     `json:"wins"`
	Rate        float64 `json:"rate"`
}

type Count struct {
	UserID      int    `json:"user_id"`
	DisplayName string `json:"display_name"`
	Count       int    `json:"count"`
}

// Names maps user ids to display names.
type Names map[int]string

func NamesOf(users []models.User) Names {
	return lo.Associate(users, func(u models.User) (int, string) {
		return u.ID, u.Name()
	})
}

func completed(races []models.Race) []models.Race {
	return lo.Filter(races, func(r models.Race, _ int) bool {
		return r.Completed && !r.Cancelled
	})
}

type finish struct {
	race   models.Race
	result models.RaceResult
}

func finishes(races []models.Race) []finish {
	var out []finish
	for _, r := range completed(races) {
		for _, res := range r.Results {
			if res.Status == models.StatusFinished {
				out = append(out, finish{race: r, result: res})
			}
		}
	}
	return out
}

// TopTimes returns the n fastest finishes. Finishes equal to the n-th time are included.
func TopTimes(races []models.Race, names Names, n int) []TimeEntry {
	all := lo.Map(finishes(races), func(f finish, _ int) TimeEntry {
		return TimeEntry{
			UserID:      f.result.RacerID,
			DisplayName: names[f.result.RacerID],
			RaceID:      f.race.ID,
			Round:       f.race.Round,
			TimeMs:      f.result.FinishTime.TotalMs(),
			Time:        f.result.FinishTime,
		}
	})
	sort.SliceStable(all, func(i, j int) bool { return all[i].TimeMs < all[j].TimeMs })
	if n <= 0 || len(all) <= n {
		return all
	}
	boundary := all[n-1].TimeMs
	end := n
	for end < len(all) && all[end].TimeMs == boundary {
		end++
	}
	return all[:end]
}

func averages(groups map[string][]finish, order []string) []AverageFinish {
	out := make([]AverageFinish, 0, len(groups))
	for _, key := range order {
		fs, ok := groups[key]
		if !ok {
			continue
		}
		total := lo.SumBy(fs, func(f finish) int64 { return f.result.FinishTime.TotalMs() })
		out = append(out, AverageFinish{Key: key, AverageMs: total / int64(len(fs)), Count: len(fs)})
	}
	return out
}

// AverageByRound returns the average finish time per round in tournament order.
func AverageByRound(races []models.Race) []AverageFinish {
	groups := lo.GroupBy(finishes(races), func(f finish) string { return string(f.race.Round) })
	order := lo.Map(models.Rounds, func(r models.Round, _ int) string { return string(r) })
	return averages(groups, order)
}

func AverageByBracket(races []models.Race) []AverageFinish {
	groups := lo.GroupBy(finishes(races), func(f finish) string { return string(f.race.Bracket) })
	order := []string{
		string(models.BracketNormal),
		string(models.BracketAscension),
		string(models.BracketExhibition),
		string(models.BracketPlayoffs),
	}
	return averages(groups, order)
}

// WinRates counts races and wins per racer over completed races.
func WinRates(races []models.Race, names Names) []WinRate {
	byUser := make(map[int]*WinRate)
	for _, r := range completed(races) {
		for _, id := range r.Racers() {
			wr, ok := byUser[id]
			if !ok {
				wr = &WinRate{UserID: id, DisplayName: names[id]}
				byUser[id] = wr
			}
			wr.Races++
			if r.WinnerID != nil && *r.WinnerID == id {
				wr.Wins++
			}
		}
	}
	out := lo.MapToSlice(byUser, func(_ int, wr *WinRate) WinRate {
		wr.Rate = float64(wr.Wins) / float64(wr.Races)
		return *wr
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rate != out[j].Rate {
			return out[i].Rate > out[j].Rate
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// TopCommentators returns the n users who commentated the most races.
func TopCommentators(races []models.Race, names Names, n int) []Count {
	ids := lo.FlatMap(lo.Filter(races, func(r models.Race, _ int) bool { return !r.Cancelled }),
		func(r models.Race, _ int) []int { return r.Commentators })
	counts := countsOf(lo.CountValues(ids), names)
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

func countsOf(m map[int]int, names Names) []Count {
	out := lo.MapToSlice(m, func(id int, c int) Count {
		return Count{UserID: id, DisplayName: names[id], Count: c}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
