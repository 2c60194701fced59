package lookup

import (
	"context"
	"strings"
	"sync"

	"github.com/BearBump/GTLTrack/internal/models"
	"github.com/BearBump/GTLTrack/internal/services/shipments"
	"github.com/pkg/errors"
)

type State int

const (
	Idle State = iota
	Loading
	Found
	NotFound
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

const (
	MsgEmptyLR  = "Please enter an LR Number"
	MsgNotFound = "LR Number not found! Please check and try again."
	MsgFailed   = "Error fetching tracking information. Please try again."
)

var ErrEmptyLR = errors.New("empty LR number")

type Fetcher interface {
	Fetch(ctx context.Context, lr string) (*models.ShipmentRecord, error)
}

type Result struct {
	State   State
	LR      string
	Record  *models.ShipmentRecord
	Message string
}

// Flow is one lookup box: Idle -> Loading -> Found | NotFound | Failed, and Loading again on
// the next submit. There is no retry; a failed lookup waits for the next Submit.
type Flow struct {
	f Fetcher

	mu     sync.Mutex
	seq    uint64
	result Result
}

func NewFlow(f Fetcher) *Flow {
	return &Flow{f: f}
}

func (fl *Flow) Snapshot() Result {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.result
}

// Submit trims lr and looks it up. A blank lr leaves the state as it was and only sets the
// validation message. Only the latest submit may publish its outcome.
func (fl *Flow) Submit(ctx context.Context, lr string) (Result, error) {
	lr = strings.TrimSpace(lr)

	fl.mu.Lock()
	if lr == "" {
		fl.result.Message = MsgEmptyLR
		res := fl.result
		fl.mu.Unlock()
		return res, ErrEmptyLR
	}
	fl.seq++
	seq := fl.seq
	fl.result = Result{State: Loading, LR: lr}
	fl.mu.Unlock()

	rec, err := fl.f.Fetch(ctx, lr)

	next := Result{LR: lr}
	switch {
	case err == nil:
		next.State = Found
		next.Record = rec
	case errors.Is(err, shipments.ErrNotFound):
		next.State = NotFound
		next.Message = MsgNotFound
		err = nil
	default:
		next.State = Failed
		next.Message = MsgFailed
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()
	if seq != fl.seq {
		// уже есть более новый запрос, его результат и покажем
		return next, err
	}
	fl.result = next
	return next, err
}
