package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"people-search/internal/csvfile"
	"people-search/internal/search"
)

const (
	SourcePublicRecords = "Public Records"
	SourcePhone         = "Phone Directory"
	SourceBusiness      = "Business Directory"
	SourceFacebook      = "Facebook Search"

	facebookSearchURL = "https://facebook.com/search/people/?q="
)

var (
	knownStates   = []string{"NJ", "PA", "NY", "MD"}
	businessTerms = []string{"LLC", "INC", "CORP", "COMPANY"}
)

// Match is the combined outcome of the records and profile lookups for one
// person.
type Match struct {
	Found       bool     `json:"found"`
	Sources     []string `json:"sources"`
	Details     string   `json:"details"`
	Confidence  float64  `json:"confidence"`
	FacebookURL *string  `json:"facebook_url"`

	facebookDetails string
}

type recordsResult struct {
	found      bool
	sources    []string
	details    string
	confidence float64
}

type profileResult struct {
	found      bool
	url        string
	details    string
	confidence float64
}

// searchRecords guesses from the address alone whether public records would
// know the person. Phone and business hints only count once the address hits.
func searchRecords(name, address, phone string) recordsResult {
	res := recordsResult{
		sources: []string{},
		details: fmt.Sprintf("No results found for %s", name),
	}
	upper := strings.ToUpper(address)
	if address == "" || !containsAny(upper, knownStates) {
		return res
	}

	res.found = true
	res.sources = append(res.sources, SourcePublicRecords)
	res.details = fmt.Sprintf("Found potential matches for %s in public records", name)
	res.confidence = 0.7

	if phone != "" && phone != "[]" && len(phone) > 5 {
		res.sources = append(res.sources, SourcePhone)
		res.confidence += 0.1
	}
	if containsAny(strings.ToUpper(name), businessTerms) {
		res.sources = append(res.sources, SourceBusiness)
		res.details = fmt.Sprintf("Found business listing for %s", name)
		res.confidence += 0.1
	}
	res.confidence = min(res.confidence, 1.0)
	return res
}

func searchProfiles(name string) profileResult {
	if len(strings.Fields(name)) < 2 {
		return profileResult{details: fmt.Sprintf("No Facebook profiles found for %s", name)}
	}
	return profileResult{
		found:      true,
		url:        facebookSearchURL + url.PathEscape(name),
		details:    fmt.Sprintf("Potential Facebook profiles found for %s", name),
		confidence: 0.6,
	}
}

// Lookup runs both lookups for one person.
func Lookup(name, address, phone string) Match {
	rec := searchRecords(name, address, phone)
	prof := searchProfiles(name)

	m := Match{
		Found:           rec.found || prof.found,
		Sources:         rec.sources,
		Details:         rec.details,
		Confidence:      max(rec.confidence, prof.confidence),
		facebookDetails: prof.details,
	}
	if prof.found {
		m.Sources = append(m.Sources, SourceFacebook)
		u := prof.url
		m.FacebookURL = &u
	}
	return m
}

// Record converts an uploaded contact into a result row. Upload rows carry
// the profile link in their details.
func Record(c csvfile.Contact) search.PersonRecord {
	phone := CleanPhone(c.Phone)
	m := Lookup(c.Name, c.Address, phone)

	details := m.Details
	if m.FacebookURL != nil {
		details += " | Facebook: " + *m.FacebookURL
	}
	status := search.StatusNotFound
	if m.Found {
		status = search.StatusFound
	}
	return search.PersonRecord{
		Name:       c.Name,
		Address:    c.Address,
		Phone:      phone,
		Status:     status,
		Sources:    m.Sources,
		Details:    details,
		Confidence: m.Confidence,
	}
}

// CleanPhone unwraps list-formatted phone cells such as "['555-0100']" to
// their first entry.
func CleanPhone(phone string) string {
	if !strings.HasPrefix(phone, "[") || !strings.HasSuffix(phone, "]") {
		return phone
	}
	var list []json.RawMessage
	if err := json.Unmarshal([]byte(strings.ReplaceAll(phone, "'", `"`)), &list); err != nil {
		return strings.Trim(phone, `[]"'`)
	}
	if len(list) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(list[0], &s); err == nil {
		return s
	}
	return string(list[0])
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
