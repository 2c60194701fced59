package models

import "regexp"

// Статусы, которые понимают фильтр и график админки. Хранилище принимает любую строку.
const (
	ShipmentStatusInTransit      = "In Transit"
	ShipmentStatusDelivered      = "Delivered"
	ShipmentStatusPending        = "Pending"
	ShipmentStatusOutForDelivery = "Out for Delivery"

	// Bucket for records persisted without a status.
	ShipmentStatusUnknown = "Unknown"
)

var ShipmentStatuses = []string{
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
	ShipmentStatusPending,
	ShipmentStatusOutForDelivery,
}

// DateLayout is the ISO calendar date used for the booking date.
const DateLayout = "2006-01-02"

var lrPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ShipmentRecord is stored under shipments/<lr>.
type ShipmentRecord struct {
	LR     string `json:"lr"`
	Status string `json:"status"`
	Route  string `json:"route"`
	Date   string `json:"date"`
}

func ValidLR(lr string) bool {
	return lrPattern.MatchString(lr)
}

func KnownStatus(status string) bool {
	for _, s := range ShipmentStatuses {
		if s == status {
			return true
		}
	}
	return false
}
