package admin

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/GTLTrack/internal/models"
	"github.com/BearBump/GTLTrack/internal/services/shipments"
	"github.com/pkg/errors"
)

var (
	ErrUnknownStatus   = errors.New("unknown shipment status")
	ErrInvalidDate     = errors.New("date must be YYYY-MM-DD")
	ErrConfirmRequired = errors.New("delete must be confirmed")
)

type Repository interface {
	Save(ctx context.Context, rec models.ShipmentRecord) error
	Rename(ctx context.Context, oldLR string, rec models.ShipmentRecord) error
	Delete(ctx context.Context, lr string) error
	List(ctx context.Context) (map[string]models.ShipmentRecord, error)
	Subscribe(ctx context.Context, onChange func(map[string]models.ShipmentRecord)) (func(), error)
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func New(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Normalize trims the form fields and fills the defaults of the admin form: status
// In Transit, date today.
func (s *Service) Normalize(rec models.ShipmentRecord) (models.ShipmentRecord, error) {
	rec.LR = strings.TrimSpace(rec.LR)
	rec.Status = strings.TrimSpace(rec.Status)
	rec.Route = strings.TrimSpace(rec.Route)
	rec.Date = strings.TrimSpace(rec.Date)

	if err := shipments.ValidateLR(rec.LR); err != nil {
		return rec, err
	}
	if rec.Status == "" {
		rec.Status = models.ShipmentStatusInTransit
	}
	if !models.KnownStatus(rec.Status) {
		return rec, errors.Wrapf(ErrUnknownStatus, "%q", rec.Status)
	}
	if rec.Date == "" {
		rec.Date = s.now().UTC().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, rec.Date); err != nil {
		return rec, ErrInvalidDate
	}
	return rec, nil
}

func (s *Service) Create(ctx context.Context, rec models.ShipmentRecord) (models.ShipmentRecord, error) {
	rec, err := s.Normalize(rec)
	if err != nil {
		return rec, err
	}
	return rec, s.repo.Save(ctx, rec)
}

// Update stores rec over currentLR. A different rec.LR renames the record.
func (s *Service) Update(ctx context.Context, currentLR string, rec models.ShipmentRecord) (models.ShipmentRecord, error) {
	if rec.LR == "" {
		rec.LR = currentLR
	}
	rec, err := s.Normalize(rec)
	if err != nil {
		return rec, err
	}
	return rec, s.repo.Rename(ctx, currentLR, rec)
}

func (s *Service) Delete(ctx context.Context, lr string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmRequired
	}
	return s.repo.Delete(ctx, lr)
}

func (s *Service) List(ctx context.Context, f Filter) (Snapshot, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	v := NewView(f)
	v.SetRecords(all)
	return v.Snapshot(), nil
}

// Export returns every record in list order. The search and status filter do not apply.
func (s *Service) Export(ctx context.Context) ([]models.ShipmentRecord, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return Sorted(all), nil
}

// Watch opens a live view over the record set with filter f. onUpdate sees every
// recomputation, starting with the initial record set.
func (s *Service) Watch(ctx context.Context, f Filter, onUpdate func(Snapshot)) (*View, func(), error) {
	v := NewView(f)
	unlisten := v.Listen(onUpdate)
	detach, err := v.Attach(ctx, s.repo)
	if err != nil {
		unlisten()
		return nil, nil, err
	}
	return v, func() {
		detach()
		unlisten()
	}, nil
}

func (s *Service) Now() time.Time {
	return s.now()
}
