package siteinfo

type Branch struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	HeadOffice bool   `json:"headOffice,omitempty"`
}

type Contacts struct {
	Phones   []string `json:"phones"`
	Email    string   `json:"email"`
	WhatsApp string   `json:"whatsapp"`
	Hours    string   `json:"hours"`
}

var branches = []Branch{
	{
		Name:       "BHIWANDI (HO)",
		Address:    "Godown No. 1, Moreshwar Compound, Near Rahanal Bus Stop, Rahanal Village, Bhiwandi, MH-421302.",
		HeadOffice: true,
	},
	{
		Name:    "VAPI BRANCH",
		Address: "Panchmukhi Complex - 2 Phase, Near NR Agarwal Paper Mill Oop.Flem Tech, Vapi, GIDC - 396191.",
	},
	{
		Name:    "ANKLESHWAR BRANCH",
		Address: "Godown No. 1, VR Complex, Near Dyastar, GIDC Ankleshwar-393001.",
	},
	{
		Name:    "VADODARA BRANCH",
		Address: "Plot No. C-239, Nilkantheshwar Estate, B/H Jai Jalaram Weigh Bridge, N.H.No.8 Darjipura Vadodara-390022.",
	},
	{
		Name:    "AHMEDABAD BRANCH",
		Address: "Godown No. 23, Bhagwan Estate, B/H Ekta Hotel, Aslali Ahmedabad-382427.",
	},
}

// Branches returns a copy; callers may not edit the shared list.
func Branches() []Branch {
	out := make([]Branch, len(branches))
	copy(out, branches)
	return out
}

// DefaultContacts are used for anything config leaves empty.
func DefaultContacts() Contacts {
	return Contacts{
		Phones:   []string{"7023651572", "9921214623", "9921214629"},
		Email:    "gatewaytranslogistic@gmail.com",
		WhatsApp: "7023651572",
		Hours:    "24/7 Available - We're always here to help you!",
	}
}

// ContactsWith overrides the WhatsApp number, e.g. from the inquiry config.
func ContactsWith(whatsapp string) Contacts {
	c := DefaultContacts()
	if whatsapp != "" {
		c.WhatsApp = whatsapp
	}
	return c
}
