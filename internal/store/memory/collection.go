package memory

import (
	"sort"
	"strings"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/loqui/chat-server-go/internal/pagination"
)

// row is a committed record plus its version. Versions drive optimistic
// conflict detection: a unit of work that read version N must still see
// version N at commit.
type row[E any] struct {
	version uint64
	value   E
}

// table is the shared, committed state of one entity. The rows map is safe
// for concurrent access; the version counter bumps on every committed
// insert, update or delete and guards scans against phantoms.
type table[E any] struct {
	rows    cmap.ConcurrentMap[string, row[E]]
	version atomic.Uint64
}

func newTable[E any]() *table[E] {
	return &table[E]{rows: cmap.New[row[E]]()}
}

// meta describes how one entity sorts and keys itself.
type meta[E any] struct {
	key     func(*E) string
	sorts   map[string]func(a, b *E) int
	defSort string
}

type pending[E any] struct {
	value   *E
	deleted bool
}

// view is one table as seen from inside a unit of work: committed rows
// overlaid with this transaction's buffered writes. Nothing in pending is
// visible to other transactions until commit applies it.
type view[E any] struct {
	t *table[E]
	m meta[E]

	pending map[string]pending[E]
	reads   map[string]uint64
	scanned bool
	scanVer uint64
}

func newView[E any](t *table[E], m meta[E]) *view[E] {
	return &view[E]{
		t:       t,
		m:       m,
		pending: make(map[string]pending[E]),
		reads:   make(map[string]uint64),
	}
}

func (v *view[E]) get(key string) *E {
	if p, ok := v.pending[key]; ok {
		if p.deleted {
			return nil
		}
		cp := *p.value
		return &cp
	}
	r, ok := v.t.rows.Get(key)
	if _, seen := v.reads[key]; !seen {
		if ok {
			v.reads[key] = r.version
		} else {
			v.reads[key] = 0
		}
	}
	if !ok {
		return nil
	}
	cp := r.value
	return &cp
}

func (v *view[E]) put(e *E) {
	cp := *e
	v.pending[v.m.key(&cp)] = pending[E]{value: &cp}
}

func (v *view[E]) remove(key string) {
	v.pending[key] = pending[E]{deleted: true}
}

// snapshot merges committed rows with this transaction's overlay and marks
// the table as scanned so commit can detect phantom writers.
func (v *view[E]) snapshot() []*E {
	if !v.scanned {
		v.scanned = true
		v.scanVer = v.t.version.Load()
	}
	out := make([]*E, 0, v.t.rows.Count())
	for item := range v.t.rows.IterBuffered() {
		if _, ok := v.pending[item.Key]; ok {
			continue
		}
		cp := item.Val.value
		out = append(out, &cp)
	}
	for _, p := range v.pending {
		if !p.deleted {
			cp := *p.value
			out = append(out, &cp)
		}
	}
	return out
}

// filter returns the overlaid rows matching pred.
func (v *view[E]) filter(pred func(*E) bool) []*E {
	all := v.snapshot()
	out := make([]*E, 0, len(all))
	for _, e := range all {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// sorted orders items by the requested field, primary key as tie-break.
// The tie-break flips with the direction, matching ORDER BY f DESC, id DESC.
func (v *view[E]) sorted(items []*E, s pagination.Sort) ([]*E, error) {
	field := s.Field
	if field == "" {
		field = v.m.defSort
	}
	cmp, ok := v.m.sorts[field]
	if !ok {
		return nil, pagination.ErrUnsupportedSort
	}
	desc := s.Direction == pagination.Desc
	sort.SliceStable(items, func(i, j int) bool {
		c := cmp(items[i], items[j])
		if c == 0 {
			c = strings.Compare(v.m.key(items[i]), v.m.key(items[j]))
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	return items, nil
}

// page slices one page out of items under the requested sort. Cursor
// requests resume strictly after the anchor row; a vanished anchor is an
// invalid cursor. Without WithCount the has-next answer comes from slice
// length alone, never a count.
func (v *view[E]) page(items []*E, req pagination.Request, s pagination.Sort) (*pagination.Page[*E], error) {
	req = req.Normalize()
	items, err := v.sorted(items, s)
	if err != nil {
		return nil, err
	}

	start := req.Offset
	if req.After != "" {
		anchor, err := pagination.DecodeCursor(req.After)
		if err != nil {
			return nil, err
		}
		start = -1
		for i, e := range items {
			if v.m.key(e) == anchor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, pagination.ErrInvalidCursor
		}
	}
	if start > len(items) {
		start = len(items)
	}

	var page pagination.Page[*E]
	if req.WithCount {
		total := int64(len(items))
		page.Total = &total
	}

	end := start + req.Limit
	if end < len(items) {
		page.HasNext = true
	} else {
		end = len(items)
	}
	page.Items = items[start:end]
	if page.HasNext && len(page.Items) > 0 {
		page.NextCursor = pagination.EncodeCursor(v.m.key(page.Items[len(page.Items)-1]))
	}
	return &page, nil
}

// validate checks this view's reads against current committed state. Row
// versions cover re-read rows; the table version covers scans (phantoms).
func (v *view[E]) validate() bool {
	for key, ver := range v.reads {
		cur := uint64(0)
		if r, ok := v.t.rows.Get(key); ok {
			cur = r.version
		}
		if cur != ver {
			return false
		}
	}
	if v.scanned && v.t.version.Load() != v.scanVer {
		return false
	}
	return true
}

// apply writes the overlay into the shared table, bumping versions. Called
// only while the store's commit lock is held.
func (v *view[E]) apply() {
	for key, p := range v.pending {
		if p.deleted {
			if _, ok := v.t.rows.Get(key); ok {
				v.t.rows.Remove(key)
				v.t.version.Add(1)
			}
			continue
		}
		ver := uint64(1)
		if r, ok := v.t.rows.Get(key); ok {
			ver = r.version + 1
		}
		v.t.rows.Set(key, row[E]{version: ver, value: *p.value})
		v.t.version.Add(1)
	}
}
