// services/ordering.go
package services

import (
	"sort"
	"strings"
	"time"

	"fan-activity-engine/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortField string

const (
	SortTime  SortField = "time"
	SortTitle SortField = "title"
	SortType  SortField = "type"
	SortGroup SortField = "group"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

func ParseSort(field, direction string) (SortField, SortDirection, error) {
	f := SortField(strings.ToLower(strings.TrimSpace(field)))
	switch f {
	case "":
		f = SortTime
	case SortTime, SortTitle, SortType, SortGroup:
	default:
		return "", "", invalidArgument("unknown sort field %q", field)
	}
	d := SortDirection(strings.ToLower(strings.TrimSpace(direction)))
	switch d {
	case "":
		d = SortAsc
	case SortAsc, SortDesc:
	default:
		return "", "", invalidArgument("unknown sort direction %q", direction)
	}
	return f, d, nil
}

// Bucket places a row in the primary ordering key:
// 1 ongoing and not ended, 2 upcoming and not ended, 3 everything else.
func Bucket(row models.ActivityRow, now time.Time) int {
	if row.Ended() {
		return 3
	}
	if !row.StartAt.After(now) && row.EndAt.After(now) {
		return 1
	}
	if row.StartAt.After(now) {
		return 2
	}
	return 3
}

// distance is how far the row's relevant edge sits from now: the end for
// ongoing rows, the start for upcoming ones, the end for the rest.
func distance(row models.ActivityRow, bucket int, now time.Time) time.Duration {
	var d time.Duration
	switch bucket {
	case 2:
		d = row.StartAt.Sub(now)
	default:
		d = row.EndAt.Sub(now)
	}
	if d < 0 {
		d = -d
	}
	return d
}

// OrderRows sorts rows in place. Every feed, single kind or merged, goes
// through here. The bucket always leads; field and direction only order rows
// within a bucket. (kind, id) makes the order total.
func OrderRows(rows []models.ActivityRow, now time.Time, field SortField, dir SortDirection) {
	col := collate.New(language.Und, collate.IgnoreCase)

	type keyed struct {
		bucket int
		dist   time.Duration
	}
	keys := make([]keyed, len(rows))
	idx := make([]int, len(rows))
	for i := range rows {
		idx[i] = i
		b := Bucket(rows[i], now)
		keys[i] = keyed{bucket: b, dist: distance(rows[i], b, now)}
	}

	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := rows[idx[a]], rows[idx[b]]
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.bucket != kb.bucket {
			return ka.bucket < kb.bucket
		}

		c := 0
		switch field {
		case SortTitle:
			c = col.CompareString(ra.Title, rb.Title)
		case SortType:
			c = strings.Compare(string(ra.Kind), string(rb.Kind))
		case SortGroup:
			c = col.CompareString(ra.GroupName, rb.GroupName)
			if c == 0 {
				c = strings.Compare(ra.GroupID, rb.GroupID)
			}
		}
		if c != 0 {
			if dir == SortDesc {
				return c > 0
			}
			return c < 0
		}

		if ka.dist != kb.dist {
			return ka.dist < kb.dist
		}
		if ra.Kind != rb.Kind {
			return ra.Kind < rb.Kind
		}
		return ra.ID < rb.ID
	})

	sorted := make([]models.ActivityRow, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
}

// paginate slices an ordered set. take == 0 yields an empty page.
func paginate(rows []models.ActivityRow, skip, take int) []models.ActivityRow {
	if skip >= len(rows) || take <= 0 {
		return []models.ActivityRow{}
	}
	if take > len(rows)-skip {
		take = len(rows) - skip
	}
	end := skip + take
	out := make([]models.ActivityRow, end-skip)
	copy(out, rows[skip:end])
	return out
}
