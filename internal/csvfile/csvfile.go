// Package csvfile reads contact lists and writes search results as CSV.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"people-search/internal/search"
)

// ErrNotCSV rejects a file before anything is sent to the backend.
var ErrNotCSV = errors.New("Please select a valid CSV file")

type Contact struct {
	Name    string
	Address string
	Phone   string
}

var sampleContacts = []Contact{
	{"Ashley Heller", "45 E. 30th St. Apt. 11c New York, NY 10016", "508-512-6117"},
	{"Brooke Mariner", "156 Stanhope Ave Mantua, NJ 08051", "856-236-3352"},
	{"Renee Cassidy", "2952 West Ave 2nd Fl Ocean City, NJ 08226", "484-719-9024"},
	{"Stan Duzy", "4943 Central Avenue Ocean City, NJ 08226", "609-545-8808"},
	{"Anna-Lisa Kleckner", "440 Dean Street West Chester, PA 19382", "484-888-9259"},
}

// SampleContacts returns the contacts written by WriteSample.
func SampleContacts() []Contact {
	return append([]Contact(nil), sampleContacts...)
}

// Validate checks that path names a .csv file with text content.
func Validate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return validate(path, data)
}

func validate(name string, data []byte) error {
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return ErrNotCSV
	}
	if len(data) == 0 {
		return nil
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return nil
		}
	}
	return ErrNotCSV
}

// Load validates path and reads it into an upload request named after the
// file's base name.
func Load(path string) (search.UploadRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return search.UploadRequest{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := validate(path, data); err != nil {
		return search.UploadRequest{}, err
	}
	return search.NewUploadRequest(filepath.Base(path), data), nil
}

// WriteSample writes the sample contact list with a name,address,phone header.
func WriteSample(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "address", "phone"}); err != nil {
		return err
	}
	for _, c := range sampleContacts {
		if err := cw.Write([]string{c.Name, c.Address, c.Phone}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ResultsHeader() []string {
	return []string{"Name", "Address", "Phone", "Status", "Sources", "Details", "Confidence"}
}

// WriteResults exports search results, one row per person.
func WriteResults(w io.Writer, people []search.PersonRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultsHeader()); err != nil {
		return err
	}
	for _, p := range people {
		if err := cw.Write([]string{
			p.Name,
			p.Address,
			p.Phone,
			string(p.Status),
			strings.Join(p.Sources, "; "),
			p.Details,
			strconv.FormatFloat(p.Confidence, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadContacts reads rows keyed by a name/address/phone header. Lowercase
// column names win over their capitalized forms. Missing columns read as "".
func ReadContacts(r io.Reader) ([]Contact, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimPrefix(name, "\ufeff")] = i
	}
	column := func(names ...string) int {
		for _, n := range names {
			if i, ok := index[n]; ok {
				return i
			}
		}
		return -1
	}
	nameCol := column("name", "Name")
	addressCol := column("address", "Address")
	phoneCol := column("phone", "Phone")

	var contacts []Contact
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return contacts, nil
		}
		if err != nil {
			return nil, err
		}

		get := func(i int) string {
			if i < 0 || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		contacts = append(contacts, Contact{
			Name:    get(nameCol),
			Address: get(addressCol),
			Phone:   get(phoneCol),
		})
	}
}
