package messages

import "time"

const (
	ShipmentOpSaved   = "saved"
	ShipmentOpDeleted = "deleted"
)

// ShipmentChanged is published after every successful write to the record store.
type ShipmentChanged struct {
	LR string    `json:"lr"`
	Op string    `json:"op"`
	At time.Time `json:"at"`
}
