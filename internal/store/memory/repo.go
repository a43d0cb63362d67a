package memory

import (
	"context"

	"github.com/loqui/chat-server-go/internal/pagination"
)

// repo adapts a view to the uniform store.Repository contract. Writes land
// in the transaction overlay only; nothing touches shared state until the
// unit of work commits.
type repo[E any, ID comparable] struct {
	v   *view[E]
	sid func(ID) string
}

func (r *repo[E, ID]) Save(ctx context.Context, e *E) error {
	r.v.put(e)
	return nil
}

func (r *repo[E, ID]) SaveAll(ctx context.Context, es []*E) error {
	for _, e := range es {
		r.v.put(e)
	}
	return nil
}

func (r *repo[E, ID]) FindByID(ctx context.Context, id ID) (*E, error) {
	return r.v.get(r.sid(id)), nil
}

func (r *repo[E, ID]) FindAll(ctx context.Context) ([]*E, error) {
	return r.v.sorted(r.v.snapshot(), pagination.Sort{})
}

func (r *repo[E, ID]) Find(ctx context.Context, page pagination.Request, sort pagination.Sort) (*pagination.Page[*E], error) {
	return r.v.page(r.v.snapshot(), page, sort)
}

func (r *repo[E, ID]) FindAllByID(ctx context.Context, ids []ID) ([]*E, error) {
	out := make([]*E, 0, len(ids))
	for _, id := range ids {
		if e := r.v.get(r.sid(id)); e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *repo[E, ID]) DeleteByID(ctx context.Context, id ID) error {
	r.v.remove(r.sid(id))
	return nil
}

func (r *repo[E, ID]) Delete(ctx context.Context, e *E) error {
	r.v.remove(r.v.m.key(e))
	return nil
}

func (r *repo[E, ID]) DeleteAll(ctx context.Context) error {
	for _, e := range r.v.snapshot() {
		r.v.remove(r.v.m.key(e))
	}
	return nil
}

func (r *repo[E, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	return r.v.get(r.sid(id)) != nil, nil
}

func (r *repo[E, ID]) Count(ctx context.Context) (int64, error) {
	return int64(len(r.v.snapshot())), nil
}
