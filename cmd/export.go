package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/redrace/tournament-system/models"
)

const standingsSheet = "Standings"

var standingsHeader = []string{"Rank", "Runner", "Bracket", "Points", "Tie breaker", "DNF", "Best time"}

func exportStandingsFile(path string, standings []models.Standing) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeStandingsXLSX(f, standings); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeStandingsXLSX пишет один лист на каждый бракет плюс общий лист.
func writeStandingsXLSX(w io.Writer, standings []models.Standing) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", standingsSheet); err != nil {
		return err
	}
	if err := fillStandingsSheet(f, standingsSheet, standings); err != nil {
		return err
	}

	byBracket := lo.GroupBy(standings, func(s models.Standing) models.Bracket { return s.Bracket })
	for _, bracket := range []models.Bracket{models.BracketPlayoffs, models.BracketNormal, models.BracketAscension, models.BracketExhibition} {
		rows, ok := byBracket[bracket]
		if !ok {
			continue
		}
		if _, err := f.NewSheet(string(bracket)); err != nil {
			return err
		}
		if err := fillStandingsSheet(f, string(bracket), rows); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func fillStandingsSheet(f *excelize.File, sheet string, standings []models.Standing) error {
	if err := f.SetSheetRow(sheet, "A1", &standingsHeader); err != nil {
		return err
	}
	for i, s := range standings {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{s.Rank, s.DisplayName, string(s.Bracket), s.Points, s.TieBreaker, lo.Ternary(s.HasDNF, "yes", "no"), formatDuration(s.BestTimeMs)}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// formatDuration печатает миллисекунды как H:MM:SS.mmm.
func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms%1000)
}
