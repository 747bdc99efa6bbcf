// services/filter.go
package services

import (
	"sort"
	"strings"
	"time"

	"fan-activity-engine/models"

	"gorm.io/gorm"
)

type TimeWindow string

const (
	WindowAll      TimeWindow = "all"
	WindowUpcoming TimeWindow = "upcoming"
	WindowOngoing  TimeWindow = "ongoing"
	WindowPast     TimeWindow = "past"
)

type OwnershipSide string

const (
	SideAny   OwnershipSide = ""
	SideMine  OwnershipSide = "mine"
	SideOther OwnershipSide = "other"
)

// FeedFilter is the raw request-side filter.
type FeedFilter struct {
	Window   TimeWindow
	IsDraft  *bool
	IsEnded  *bool
	GroupIDs []string
	ViewerID string
	Side     OwnershipSide
}

// FilterSpec is a compiled FeedFilter bound to one instant. It is a value:
// nothing it holds is shared with the caller, and every query built from it
// uses bind parameters only.
type FilterSpec struct {
	window   TimeWindow
	hasDraft bool
	isDraft  bool
	hasEnded bool
	isEnded  bool
	groupIDs []string
	viewerID string
	side     OwnershipSide
	now      time.Time
}

// CompileFilter validates f and freezes it at now.
func CompileFilter(f FeedFilter, now time.Time) (FilterSpec, error) {
	fs := FilterSpec{
		window:   f.Window,
		viewerID: strings.TrimSpace(f.ViewerID),
		side:     f.Side,
		now:      now.UTC(),
	}
	switch fs.window {
	case "":
		fs.window = WindowAll
	case WindowAll, WindowUpcoming, WindowOngoing, WindowPast:
	default:
		return FilterSpec{}, invalidArgument("unknown time window %q", f.Window)
	}
	switch fs.side {
	case SideAny:
	case SideMine, SideOther:
		if fs.viewerID == "" {
			return FilterSpec{}, invalidArgument("ownership side %q requires a viewer", f.Side)
		}
	default:
		return FilterSpec{}, invalidArgument("unknown ownership side %q", f.Side)
	}
	if f.IsDraft != nil {
		fs.hasDraft, fs.isDraft = true, *f.IsDraft
	}
	if f.IsEnded != nil {
		fs.hasEnded, fs.isEnded = true, *f.IsEnded
	}

	seen := make(map[string]struct{}, len(f.GroupIDs))
	for _, id := range f.GroupIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		fs.groupIDs = append(fs.groupIDs, id)
	}
	sort.Strings(fs.groupIDs)
	return fs, nil
}

func (f FilterSpec) Now() time.Time { return f.now }
func (f FilterSpec) ViewerID() string { return f.viewerID }
func (f FilterSpec) Window() TimeWindow { return f.window }
func (f FilterSpec) Side() OwnershipSide { return f.side }

// WithSide returns a copy restricted to one ownership side.
func (f FilterSpec) WithSide(side OwnershipSide) (FilterSpec, error) {
	if side != SideAny && f.viewerID == "" {
		return FilterSpec{}, invalidArgument("ownership side %q requires a viewer", side)
	}
	if side != SideAny && side != SideMine && side != SideOther {
		return FilterSpec{}, invalidArgument("unknown ownership side %q", side)
	}
	f.side = side
	return f, nil
}

// scope renders the predicate against one kind's table.
func (f FilterSpec) scope(src kindSource) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		game := src.kind.HasEndedFlag()
		switch f.window {
		case WindowUpcoming:
			db = db.Where(src.col("start_at")+" > ?", f.now)
			if game {
				db = db.Where(src.col("is_ended")+" = ?", false)
			}
		case WindowOngoing:
			db = db.Where(src.col("start_at")+" <= ? AND "+src.col("end_at")+" > ?", f.now, f.now)
			if game {
				db = db.Where(src.col("is_ended")+" = ?", false)
			}
		case WindowPast:
			if game {
				db = db.Where("("+src.col("end_at")+" < ? OR "+src.col("is_ended")+" = ?)", f.now, true)
			} else {
				db = db.Where(src.col("end_at")+" < ?", f.now)
			}
		}

		if f.hasDraft {
			db = db.Where(src.col("is_draft")+" = ?", f.isDraft)
		}
		if f.hasEnded {
			switch {
			case game:
				db = db.Where(src.col("is_ended")+" = ?", f.isEnded)
			case f.isEnded:
				db = db.Where(src.col("end_at")+" < ?", f.now)
			default:
				db = db.Where(src.col("end_at")+" >= ?", f.now)
			}
		}
		if len(f.groupIDs) > 0 {
			db = db.Where(src.col("group_id")+" IN ?", f.groupIDs)
		}

		switch f.side {
		case SideMine:
			db = db.Where(src.participatedBy(), f.viewerID)
		case SideOther:
			db = db.Where("NOT "+src.participatedBy(), f.viewerID)
		}
		return db
	}
}

// Matches evaluates the predicate in memory against a projected row. The
// ownership side is judged from HasViewerParticipated, so rows must have been
// projected for the same viewer.
func (f FilterSpec) Matches(row models.ActivityRow) bool {
	game := row.Kind.HasEndedFlag()
	ended := row.Ended()
	switch f.window {
	case WindowUpcoming:
		if !row.StartAt.After(f.now) || (game && ended) {
			return false
		}
	case WindowOngoing:
		if row.StartAt.After(f.now) || !row.EndAt.After(f.now) || (game && ended) {
			return false
		}
	case WindowPast:
		if !row.EndAt.Before(f.now) && !(game && ended) {
			return false
		}
	}
	if f.hasDraft && row.IsDraft != f.isDraft {
		return false
	}
	if f.hasEnded {
		got := ended
		if !game {
			got = row.EndAt.Before(f.now)
		}
		if got != f.isEnded {
			return false
		}
	}
	if len(f.groupIDs) > 0 {
		i := sort.SearchStrings(f.groupIDs, row.GroupID)
		if i >= len(f.groupIDs) || f.groupIDs[i] != row.GroupID {
			return false
		}
	}
	participated := row.HasViewerParticipated != nil && *row.HasViewerParticipated
	switch f.side {
	case SideMine:
		return participated
	case SideOther:
		return !participated
	}
	return true
}
