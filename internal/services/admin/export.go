package admin

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/BearBump/GTLTrack/internal/models"
	"github.com/pkg/errors"
)

var csvHeader = []string{"LR Number", "Status", "Route", "Date"}

// ExportCSV writes header plus one row per record. Fields with commas, quotes or
// newlines are quoted.
func ExportCSV(w io.Writer, records []models.ShipmentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, rec := range records {
		if err := cw.Write([]string{rec.LR, rec.Status, rec.Route, rec.Date}); err != nil {
			return errors.Wrapf(err, "write csv row %s", rec.LR)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func ExportFilename(now time.Time) string {
	return fmt.Sprintf("gtl-shipments-%s.csv", now.Format(models.DateLayout))
}
