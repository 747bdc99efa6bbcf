// services/archive.go
package services

import (
	"context"
	"encoding/json"
	"fmt"

	"fan-activity-engine/models"

	"github.com/gosimple/slug"
)

// ObjectStore is the subset of object storage the archive needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// StandingsArchiver keeps a copy of final standings outside the database.
type StandingsArchiver interface {
	ArchiveStandings(ctx context.Context, snap models.StandingsSnapshot) (string, error)
}

type ObjectStoreArchiver struct {
	Store ObjectStore
}

func (a ObjectStoreArchiver) ArchiveStandings(ctx context.Context, snap models.StandingsSnapshot) (string, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode standings: %w", err)
	}
	return a.Store.PutObject(ctx, StandingsKey(snap), body, "application/json")
}

// StandingsKey is e.g. "standings/trivia/derby-night-quiz-<id>.json".
func StandingsKey(snap models.StandingsSnapshot) string {
	name := slug.Make(snap.Title)
	if name == "" {
		return fmt.Sprintf("standings/%s/%s.json", snap.Kind, snap.ContestID)
	}
	return fmt.Sprintf("standings/%s/%s-%s.json", snap.Kind, name, snap.ContestID)
}

// contestLink is the in-app deep link carried in notification content.
func contestLink(kind models.ActivityKind, id, title string) string {
	name := slug.Make(title)
	if name == "" {
		return fmt.Sprintf("/games/%s/%s", kind, id)
	}
	return fmt.Sprintf("/games/%s/%s-%s", kind, name, id)
}
