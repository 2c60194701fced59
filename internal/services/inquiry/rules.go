package inquiry

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	LoadPart = "Part Load"
	LoadFull = "Full Load"
)

var Vehicles = []string{"Pickup (2.5T)", "Small (7T)", "Medium (16T)", "Large (25T)"}

const (
	MsgMaterial = "ERROR: PLEASE ENTER PARCEL NAME."
	MsgWeight   = "ERROR: PLEASE ENTER WEIGHT."
	MsgSelect   = "ERROR: PLEASE SELECT LOAD AND VEHICLE."
	MsgAddress  = "ERROR: PLEASE WRITE FULL ADDRESS (House No, Area)."
	MsgPartLoad = "ERROR: PART LOAD SERVICE IS AVAILABLE IN STATE OF MAHARASHTRA, GUJRAT AND RAJASTHAN ONLY FOR ALL OVER INDIA DELIVERY SELECT FULL LOAD."
)

// Part Load ходит только по MH/GJ/RJ.
var (
	partLoadAllowed = []string{
		"mh", "gj", "rj", "maharashtra", "gujarat", "rajasthan",
		"mumbai", "pune", "surat", "vapi", "ahmedabad", "bikaner", "jaipur", "jodhpur",
		"ajmer", "sikar", "kota", "alwar",
	}
	partLoadBlocked = []string{"chennai", "bengaluru", "bangalore", "hyderabad", "delhi", "kolkata"}
)

const (
	minMaterialLen = 2
	minAddressLen  = 10
)

type Request struct {
	Material    string `json:"material"`
	Weight      string `json:"weight"`
	LoadType    string `json:"loadType"`
	Vehicle     string `json:"vehicle"`
	FromCity    string `json:"fromCity"`
	FromAddress string `json:"fromAddress"`
	ToCity      string `json:"toCity"`
	ToAddress   string `json:"toAddress"`
}

// ValidationError carries the message shown to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate applies the form rules in order and stops at the first failure.
func Validate(r Request) error {
	if utf8.RuneCountInString(r.Material) < minMaterialLen || strings.ToLower(r.Material) == "dhoni" {
		return &ValidationError{MsgMaterial}
	}
	if !strings.ContainsFunc(r.Weight, unicode.IsDigit) {
		return &ValidationError{MsgWeight}
	}
	if !validLoadType(r.LoadType) || !validVehicle(r.Vehicle) {
		return &ValidationError{MsgSelect}
	}
	if utf8.RuneCountInString(r.FromAddress) < minAddressLen || utf8.RuneCountInString(r.ToAddress) < minAddressLen {
		return &ValidationError{MsgAddress}
	}
	if r.LoadType == LoadPart && !PartLoadServes(r.ToCity) {
		return &ValidationError{MsgPartLoad}
	}
	return nil
}

// PartLoadServes reports whether a Part Load can go to city. Block-listed names win over
// allow-listed ones.
func PartLoadServes(city string) bool {
	c := strings.ToLower(city)
	for _, b := range partLoadBlocked {
		if strings.Contains(c, b) {
			return false
		}
	}
	for _, a := range partLoadAllowed {
		if strings.Contains(c, a) {
			return true
		}
	}
	return false
}

func validLoadType(s string) bool {
	return s == LoadPart || s == LoadFull
}

func validVehicle(s string) bool {
	for _, v := range Vehicles {
		if v == s {
			return true
		}
	}
	return false
}
