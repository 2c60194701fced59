package admin

import (
	"context"
	"sync"

	"github.com/BearBump/GTLTrack/internal/models"
)

type Source interface {
	Subscribe(ctx context.Context, onChange func(map[string]models.ShipmentRecord)) (func(), error)
}

// Snapshot is what the admin list renders.
type Snapshot struct {
	Filter  Filter                  `json:"filter"`
	Records []models.ShipmentRecord `json:"records"`
	Counts  []StatusCount           `json:"counts"`
	Stats   Stats                   `json:"stats"`
}

// View holds the authoritative record list and recomputes the projection whenever the
// list or the filter changes. Counts and stats always cover the whole list.
type View struct {
	mu        sync.RWMutex
	all       []models.ShipmentRecord
	filter    Filter
	snap      Snapshot
	listeners map[int]func(Snapshot)
	nextID    int
}

func NewView(f Filter) *View {
	v := &View{filter: f, listeners: make(map[int]func(Snapshot))}
	v.snap = v.compute()
	return v
}

// Attach subscribes the view to src. The returned func detaches it.
func (v *View) Attach(ctx context.Context, src Source) (func(), error) {
	return src.Subscribe(ctx, v.SetRecords)
}

func (v *View) SetRecords(records map[string]models.ShipmentRecord) {
	v.mu.Lock()
	v.all = Sorted(records)
	v.snap = v.compute()
	snap, fns := v.snap, v.callbacks()
	v.mu.Unlock()
	notify(fns, snap)
}

func (v *View) SetFilter(f Filter) {
	v.mu.Lock()
	v.filter = f
	v.snap = v.compute()
	snap, fns := v.snap, v.callbacks()
	v.mu.Unlock()
	notify(fns, snap)
}

func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap
}

// Listen registers fn for every recomputation. fn must not call back into the view.
func (v *View) Listen(fn func(Snapshot)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

func (v *View) compute() Snapshot {
	return Snapshot{
		Filter:  v.filter,
		Records: Project(v.all, v.filter),
		Counts:  CountByStatus(v.all),
		Stats:   ComputeStats(v.all),
	}
}

func (v *View) callbacks() []func(Snapshot) {
	fns := make([]func(Snapshot), 0, len(v.listeners))
	for _, fn := range v.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(Snapshot), snap Snapshot) {
	for _, fn := range fns {
		fn(snap)
	}
}
