package messages

import "time"

type InquirySubmitted struct {
	Material    string    `json:"material"`
	Weight      string    `json:"weight"`
	LoadType    string    `json:"load_type"`
	Vehicle     string    `json:"vehicle"`
	FromCity    string    `json:"from_city,omitempty"`
	FromAddress string    `json:"from_address"`
	ToCity      string    `json:"to_city,omitempty"`
	ToAddress   string    `json:"to_address"`
	SubmittedAt time.Time `json:"submitted_at"`
}
