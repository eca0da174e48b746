package models

// Business is one venture on the applicant's profile.
type Business struct {
	Name   string `json:"name"`
	Sector string `json:"sector"`
	Status string `json:"status"`
}

// Profile holds the applicant attributes the match scorer reads. It is owned
// by the application root and read-only to the core components.
type Profile struct {
	Rural        bool       `json:"rural"`
	Disabled     bool       `json:"disabled"`
	BelowPoverty bool       `json:"below_poverty"`
	SelfEmployed bool       `json:"self_employed"`
	State        string     `json:"state,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Businesses   []Business `json:"businesses,omitempty"`
	Narratives   []string   `json:"narratives,omitempty"`
}
