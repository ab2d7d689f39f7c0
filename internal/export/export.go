// Package export writes the filtered event view as a JSON document that
// can be loaded back without loss.
package export

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/lestrrat-go/strftime"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
)

// Content types of encoded documents.
const (
	ContentTypeJSON = "application/json"
	ContentTypeGzip = "application/gzip"
)

const fileNamePattern = "servereye-events-%Y-%m-%d.json"

// Document is an export of one filtered view.
type Document struct {
	ExportedAt time.Time
	Filter     pipeline.Filter
	Events     []event.Record
}

// New builds a Document for view, which must already be filtered by f.
func New(view []event.Record, f pipeline.Filter, now time.Time) Document {
	return Document{ExportedAt: now, Filter: f.Normalize(), Events: view}
}

type wireDocument struct {
	ExportedAt string          `json:"exportedAt"`
	Filter     pipeline.Filter `json:"filter"`
	Count      int             `json:"count"`
	Events     json.RawMessage `json:"events"`
}

// MarshalJSON encodes the document. Events keep their original field order.
func (d Document) MarshalJSON() ([]byte, error) {
	events, err := event.MarshalRecords(d.Events)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireDocument{
		ExportedAt: d.ExportedAt.UTC().Format(time.RFC3339),
		Filter:     d.Filter,
		Count:      len(d.Events),
		Events:     events,
	})
}

// Encode writes d to w, gzip-compressed when compress is set.
func Encode(w io.Writer, d Document, compress bool) error {
	data, err := d.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	if !compress {
		_, err = w.Write(data)
		return err
	}
	zw := gzip.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Bytes returns the encoded document and its content type.
func Bytes(d Document, compress bool) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, d, compress); err != nil {
		return nil, "", err
	}
	if compress {
		return buf.Bytes(), ContentTypeGzip, nil
	}
	return buf.Bytes(), ContentTypeJSON, nil
}

// Decode reads a document written by Encode, compressed or not. Event
// timestamps without a zone are read in loc.
func Decode(r io.Reader, loc *time.Location) (Document, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return Document{}, fmt.Errorf("opening gzip export: %w", err)
		}
		defer zr.Close()
		r = zr
	} else {
		r = br
	}

	var wire wireDocument
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return Document{}, fmt.Errorf("decoding export: %w", err)
	}
	doc := Document{Filter: wire.Filter}
	if wire.ExportedAt != "" {
		t, err := time.Parse(time.RFC3339, wire.ExportedAt)
		if err != nil {
			return Document{}, fmt.Errorf("invalid exportedAt %q: %w", wire.ExportedAt, err)
		}
		doc.ExportedAt = t
	}
	if len(wire.Events) > 0 {
		events, err := event.DecodeRecords(wire.Events, event.DecodeOptions{Location: loc})
		if err != nil {
			return Document{}, fmt.Errorf("decoding exported events: %w", err)
		}
		doc.Events = events
	}
	if wire.Count != len(doc.Events) {
		return Document{}, fmt.Errorf("export count %d does not match %d events", wire.Count, len(doc.Events))
	}
	return doc, nil
}

// FileName is the download name for an export made at t, e.g.
// servereye-events-2024-05-01.json or .json.gz when compressed.
func FileName(t time.Time, compress bool) string {
	name, err := strftime.Format(fileNamePattern, t)
	if err != nil {
		name = "servereye-events-" + t.Format("2006-01-02") + ".json"
	}
	if compress {
		name += ".gz"
	}
	return name
}
