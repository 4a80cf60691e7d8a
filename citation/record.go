// Package citation renders retrieved source references into the
// "**Fontes:**" block appended to pipeline answers.
package citation

import (
	"encoding/json"
	"strings"
)

// Marker is the prefix of a rendered citation block. History formatting
// strips everything from this marker onward in assistant turns.
const Marker = "\n\n**Fontes:**"

// Header opens a rendered citation block.
const Header = Marker + "\n"

// S3Location carries the URI of a document in the backend's store.
type S3Location struct {
	URI string `json:"uri"`
}

// Location wraps the storage location of a retrieved reference.
type Location struct {
	S3Location S3Location `json:"s3Location"`
}

// RetrievedReference is one reference inside a backend citation record.
type RetrievedReference struct {
	Location Location `json:"location"`
}

// Record is one raw citation entry from a backend response. The wire
// shape varies: a dict with nested retrievedReferences, or a bare string
// identifier. Both decode into this type.
type Record struct {
	Source              string               `json:"-"`
	RetrievedReferences []RetrievedReference `json:"retrievedReferences"`
}

// FromURI builds a Record for a single document URI, the shape produced
// when converting SDK citation types.
func FromURI(uri string) Record {
	return Record{RetrievedReferences: []RetrievedReference{
		{Location: Location{S3Location: S3Location{URI: uri}}},
	}}
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = Record{Source: s}
		return nil
	}
	type alias Record
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Record(a)
	return nil
}

// resolve extracts the (source identifier, display name) pair for the
// record, walking into the first reference whose location yields a URI.
// ok is false when the record carries no usable source.
func (r Record) resolve() (identifier, display string, ok bool) {
	for _, ref := range r.RetrievedReferences {
		uri := ref.Location.S3Location.URI
		if uri == "" {
			continue
		}
		return uri, basename(uri), true
	}
	if r.Source != "" {
		return r.Source, basename(r.Source), true
	}
	return "", "", false
}

// basename returns the segment after the last '/', or the whole string
// when it contains none.
func basename(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}
