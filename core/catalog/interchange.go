// Package catalog moves whole-catalog data across the process boundary:
// a versioned JSON interchange document for dumps and restores, and the
// resolution step export writers consume.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"cratefm/logger"
	"cratefm/model"
	"cratefm/repository"
)

// InterchangeVersion tags the document layout. Bump on incompatible
// field changes.
const InterchangeVersion = 1

// InterchangeDocument is the self-describing dump format for the whole
// catalog.
type InterchangeDocument struct {
	Version    int           `json:"version"`
	ExportedAt time.Time     `json:"exportedAt"`
	TrackCount int           `json:"trackCount"`
	Tracks     []model.Track `json:"tracks"`
}

// ExportAll serializes every catalog track into an interchange
// document.
func ExportAll(repo repository.TrackRepository) ([]byte, error) {
	tracks, err := repo.AllTracks()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	doc := InterchangeDocument{
		Version:    InterchangeVersion,
		ExportedAt: time.Now().UTC(),
		TrackCount: len(tracks),
		Tracks:     make([]model.Track, 0, len(tracks)),
	}
	for _, tr := range tracks {
		doc.Tracks = append(doc.Tracks, *tr)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal interchange document: %w", err)
	}

	logger.Info("Catalog exported", logger.Int("tracks", doc.TrackCount))
	return data, nil
}

// ImportAll bulk-upserts an interchange document into the catalog and
// returns how many tracks it carried. Existing rows with matching ids
// are overwritten.
func ImportAll(repo repository.TrackRepository, data []byte) (int, error) {
	var doc InterchangeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to parse interchange document: %w", err)
	}
	if doc.Version != InterchangeVersion {
		return 0, fmt.Errorf("unsupported interchange version %d", doc.Version)
	}
	if doc.TrackCount != len(doc.Tracks) {
		return 0, fmt.Errorf("interchange document is inconsistent: header says %d tracks, body has %d",
			doc.TrackCount, len(doc.Tracks))
	}

	tracks := make([]*model.Track, 0, len(doc.Tracks))
	for i := range doc.Tracks {
		tracks = append(tracks, &doc.Tracks[i])
	}
	if err := repo.BulkUpsertTracks(tracks); err != nil {
		return 0, fmt.Errorf("failed to import catalog: %w", err)
	}

	logger.Info("Catalog imported", logger.Int("tracks", len(tracks)))
	return len(tracks), nil
}

// ResolveForExport resolves a finalized plan's ordered ids to full
// track records for an export writer. A plan still in draft is
// rejected, as is any id the catalog cannot resolve.
func ResolveForExport(repo repository.TrackRepository, plan *model.Plan, opts model.ExportOptions) ([]*model.Track, error) {
	if !plan.Finalized {
		return nil, fmt.Errorf("plan %s is not finalized and cannot be exported", plan.ID)
	}
	switch opts.Format {
	case model.ExportFormatM3U, model.ExportFormatCSV, model.ExportFormatJSON:
	default:
		return nil, fmt.Errorf("unknown export format %q", opts.Format)
	}

	tracks := make([]*model.Track, 0, len(plan.TrackIDs))
	for _, id := range plan.TrackIDs {
		track, err := repo.GetTrackByID(id)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve track %q: %w", id, err)
		}
		if track == nil {
			return nil, fmt.Errorf("track %q in plan %s is missing from the catalog", id, plan.ID)
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}
