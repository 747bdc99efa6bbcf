// services/feed_service.go
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fan-activity-engine/logger"
	"fan-activity-engine/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// FeedService merges every activity kind of a family into one ordered,
// paginated feed.
type FeedService struct {
	DB          *gorm.DB
	MaxPageSize int
	Clock       func() time.Time
	log         *logger.Logger
}

func NewFeedService(db *gorm.DB, maxPageSize int, log *logger.Logger) *FeedService {
	return &FeedService{
		DB:          db,
		MaxPageSize: maxPageSize,
		Clock:       time.Now,
		log:         logger.OrNop(log).With("service", "FeedService"),
	}
}

type FeedQuery struct {
	Family    models.ActivityFamily
	Filter    FeedFilter
	Sort      SortField
	Direction SortDirection
	Skip      int
	Take      int
}

type OwnerSplitQuery struct {
	Family    models.ActivityFamily // empty means every kind
	Side      OwnershipSide
	ViewerID  string
	Filter    FeedFilter
	Sort      SortField
	Direction SortDirection
	Skip      int
	Take      int
}

// FeedStats is the per-kind breakdown of a feed's count.
type FeedStats struct {
	PerKind map[models.ActivityKind]int64 `json:"per_kind"`
	Total   int64                         `json:"total"`
}

// GetFeed returns one page of the family's feed and the size of the whole
// filtered union.
func (s *FeedService) GetFeed(ctx context.Context, q FeedQuery) (*models.FeedPage, error) {
	if !q.Family.Valid() {
		return nil, invalidArgument("unknown activity family %q", q.Family)
	}
	take, err := s.pageBounds(q.Skip, q.Take)
	if err != nil {
		return nil, err
	}
	fs, err := CompileFilter(q.Filter, s.Clock())
	if err != nil {
		return nil, err
	}
	sources := sourcesFor(q.Family)

	rows, counts, err := s.collect(ctx, sources, fs)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}

	OrderRows(rows, fs.Now(), q.Sort, q.Direction)
	s.log.Debug("feed served",
		"family", q.Family, "window", fs.Window(), "rows", len(rows), "total", total,
		"skip", q.Skip, "take", take)
	return &models.FeedPage{Data: paginate(rows, q.Skip, take), Count: total}, nil
}

// GetOwnerSplitFeed returns one independently ordered page per kind, limited
// to activities the viewer did (Mine) or did not (Other) take part in.
func (s *FeedService) GetOwnerSplitFeed(ctx context.Context, q OwnerSplitQuery) (*models.OwnerSplitFeed, error) {
	if q.Family != "" && !q.Family.Valid() {
		return nil, invalidArgument("unknown activity family %q", q.Family)
	}
	if q.Side != SideMine && q.Side != SideOther {
		return nil, invalidArgument("ownership side must be %q or %q", SideMine, SideOther)
	}
	take, err := s.pageBounds(q.Skip, q.Take)
	if err != nil {
		return nil, err
	}
	filter := q.Filter
	filter.ViewerID = q.ViewerID
	filter.Side = q.Side
	fs, err := CompileFilter(filter, s.Clock())
	if err != nil {
		return nil, err
	}

	sources := sourcesFor(q.Family)
	pages := make([]models.FeedPage, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			rows, n, err := s.snapshotKind(gctx, src, fs)
			if err != nil {
				return err
			}
			OrderRows(rows, fs.Now(), q.Sort, q.Direction)
			pages[i] = models.FeedPage{Data: paginate(rows, q.Skip, take), Count: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &models.OwnerSplitFeed{PerKind: make(map[models.ActivityKind]models.FeedPage, len(sources))}
	for i, src := range sources {
		i, src := i, src
		out.PerKind[src.kind] = pages[i]
	}
	return out, nil
}

// CountByKind runs the count half of GetFeed and keeps the breakdown.
func (s *FeedService) CountByKind(ctx context.Context, family models.ActivityFamily, filter FeedFilter) (*FeedStats, error) {
	if family != "" && !family.Valid() {
		return nil, invalidArgument("unknown activity family %q", family)
	}
	fs, err := CompileFilter(filter, s.Clock())
	if err != nil {
		return nil, err
	}
	sources := sourcesFor(family)
	counts, err := s.countKinds(ctx, sources, fs)
	if err != nil {
		return nil, err
	}
	stats := &FeedStats{PerKind: make(map[models.ActivityKind]int64, len(sources))}
	for i, src := range sources {
		i, src := i, src
		stats.PerKind[src.kind] = counts[i]
		stats.Total += counts[i]
	}
	return stats, nil
}

func (s *FeedService) pageBounds(skip, take int) (int, error) {
	if skip < 0 {
		return 0, invalidArgument("skip must not be negative")
	}
	if take < 0 {
		return 0, invalidArgument("take must not be negative")
	}
	if s.MaxPageSize > 0 && take > s.MaxPageSize {
		take = s.MaxPageSize
	}
	return take, nil
}

// collect snapshots every kind concurrently and bag-unions the rows. The
// returned counts line up with sources. Any failing kind fails the whole feed.
func (s *FeedService) collect(ctx context.Context, sources []kindSource, fs FilterSpec) ([]models.ActivityRow, []int64, error) {
	perKind := make([][]models.ActivityRow, len(sources))
	counts := make([]int64, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			rows, n, err := s.snapshotKind(gctx, src, fs)
			if err != nil {
				return err
			}
			perKind[i], counts[i] = rows, n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	size := 0
	for _, rows := range perKind {
		size += len(rows)
	}
	union := make([]models.ActivityRow, 0, size)
	for _, rows := range perKind {
		union = append(union, rows...)
	}
	return union, counts, nil
}

// snapshotKind reads one kind's rows and count inside a single read-only
// transaction so the two agree under concurrent writes.
func (s *FeedService) snapshotKind(ctx context.Context, src kindSource, fs FilterSpec) ([]models.ActivityRow, int64, error) {
	var rows []models.ActivityRow
	var n int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if rows, err = fetchKind(tx, src, fs); err != nil {
			return err
		}
		n, err = countKind(tx, src, fs)
		return err
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, 0, err
	}
	return rows, n, nil
}

func (s *FeedService) countKinds(ctx context.Context, sources []kindSource, fs FilterSpec) ([]int64, error) {
	counts := make([]int64, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			n, err := countKind(s.DB.WithContext(gctx), src, fs)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

func fetchKind(db *gorm.DB, src kindSource, fs FilterSpec) ([]models.ActivityRow, error) {
	sel, args := src.projection(fs.ViewerID())
	var rows []models.ActivityRow
	err := db.
		Model(src.newModel()).
		Select(sel, args...).
		Joins(src.teamJoin()).
		Scopes(fs.scope(src)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch %s activities: %w", src.kind, err)
	}
	for i := range rows {
		rows[i].Kind = src.kind
	}
	return rows, nil
}

func countKind(db *gorm.DB, src kindSource, fs FilterSpec) (int64, error) {
	var n int64
	err := db.
		Model(src.newModel()).
		Scopes(fs.scope(src)).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count %s activities: %w", src.kind, err)
	}
	return n, nil
}
