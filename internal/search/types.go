package search

import (
	"bytes"
	"io"
)

// UploadFieldName is the multipart field the backend reads the CSV from.
const UploadFieldName = "file"

type PersonStatus string

const (
	StatusFound    PersonStatus = "found"
	StatusNotFound PersonStatus = "not_found"
)

type PersonRecord struct {
	Name       string       `json:"name"`
	Address    string       `json:"address"`
	Phone      string       `json:"phone"`
	Status     PersonStatus `json:"status"`
	Sources    []string     `json:"sources"`
	Details    string       `json:"details"`
	Confidence float64      `json:"confidence"`
}

// ResponsePayload is the parsed body of a successful upload.
type ResponsePayload struct {
	Success        bool           `json:"success,omitempty"`
	Found          int            `json:"found"`
	TotalProcessed int            `json:"totalProcessed"`
	NotFound       int            `json:"notFound,omitempty"`
	People         []PersonRecord `json:"people"`
}

type HealthInfo struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Version string `json:"version"`
}

// UploadRequest is an immutable CSV payload ready to be posted.
type UploadRequest struct {
	fileName string
	data     []byte
}

func NewUploadRequest(fileName string, data []byte) UploadRequest {
	return UploadRequest{
		fileName: fileName,
		data:     bytes.Clone(data),
	}
}

func (r UploadRequest) FieldName() string { return UploadFieldName }

func (r UploadRequest) FileName() string { return r.fileName }

func (r UploadRequest) Size() int { return len(r.data) }

// Reader returns a fresh reader over the payload. Every attempt gets its own.
func (r UploadRequest) Reader() io.Reader {
	return bytes.NewReader(r.data)
}
