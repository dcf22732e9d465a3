package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redrace/tournament-system/models"
)

// RoundArchive is the standings snapshot stored when a round ends.
type RoundArchive struct {
	Tournament string            `json:"tournament"`
	Round      models.Round      `json:"round"`
	ArchivedAt time.Time         `json:"archived_at"`
	Standings  []models.Standing `json:"standings"`
	Cut        *models.Cut       `json:"cut,omitempty"`
}

// ArchiveKey returns the object key of a round snapshot, e.g. "archives/red2025/round-3.json".
func ArchiveKey(tournament string, round models.Round) string {
	slug := strings.ToLower(strings.ReplaceAll(string(round), " ", "-"))
	return fmt.Sprintf("archives/%s/%s.json", tournament, slug)
}

func UploadRoundArchive(ctx context.Context, uploader FileUploader, archive RoundArchive) (*UploadResult, error) {
	body, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode round archive: %w", err)
	}
	return uploader.Upload(ctx, ArchiveKey(archive.Tournament, archive.Round), "application/json", bytes.NewReader(body))
}
