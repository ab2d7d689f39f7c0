package event

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Known event types reported by the ServerEye plugin. The set is open:
// any other string is carried through and displayed literally.
const (
	TypePlayerJoin       = "player_join"
	TypePlayerLeave      = "player_leave"
	TypeBlockBreak       = "block_break"
	TypeBlockPlace       = "block_place"
	TypeChatMessage      = "chat_message"
	TypeGamemodeChange   = "gamemode_change"
	TypeCommandExecution = "command_execution"
)

// KnownTypes lists the built-in event types in display order.
var KnownTypes = []string{
	TypePlayerJoin,
	TypePlayerLeave,
	TypeBlockBreak,
	TypeBlockPlace,
	TypeChatMessage,
	TypeGamemodeChange,
	TypeCommandExecution,
}

// Wire field names of an event record.
const (
	fieldType      = "event"
	fieldPlayer    = "player"
	fieldTimestamp = "timestamp"
	fieldDetails   = "details"
)

// Record is one event observed on the monitored server. Records are
// immutable once decoded.
type Record struct {
	Type      string
	Player    *string
	Timestamp string    // as received
	Time      time.Time // parsed instant; zero when TimeValid is false
	TimeValid bool
	Details   Value
	Extra     []Field // unrecognised top-level fields, in document order

	tsNumeric bool
	orig      *Value // set when the array element was not an object
}

// PlayerName returns the player and whether the record has one.
func (r Record) PlayerName() (string, bool) {
	if r.Player == nil {
		return "", false
	}
	return *r.Player, true
}

// Malformed reports records whose array element was not an object.
func (r Record) Malformed() bool {
	return r.orig != nil
}

// Equal reports structural equality of two records.
func (r Record) Equal(o Record) bool {
	if r.Type != o.Type || r.Timestamp != o.Timestamp || r.TimeValid != o.TimeValid || r.tsNumeric != o.tsNumeric {
		return false
	}
	if !r.Time.Equal(o.Time) {
		return false
	}
	if (r.Player == nil) != (o.Player == nil) || (r.Player != nil && *r.Player != *o.Player) {
		return false
	}
	if (r.orig == nil) != (o.orig == nil) || (r.orig != nil && !r.orig.Equal(*o.orig)) {
		return false
	}
	return r.Details.Equal(o.Details) && Object(r.Extra...).Equal(Object(o.Extra...))
}

// DecodeOptions controls record decoding.
type DecodeOptions struct {
	// Location is used for timestamps without a zone. Defaults to UTC.
	Location *time.Location
}

// DecodeRecords decodes a JSON array of event records. Only a body that is
// not a JSON array is an error; individual malformed records degrade to
// placeholders and are never dropped.
func DecodeRecords(data []byte, opts DecodeOptions) ([]Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("event list is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("event list must be a JSON array, got %s", root.Type)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	records := make([]Record, 0)
	root.ForEach(func(_, item gjson.Result) bool {
		records = append(records, decodeRecord(item, loc))
		return true
	})
	return records, nil
}

// DecodeRecord decodes a single JSON object.
func DecodeRecord(data []byte, opts DecodeOptions) Record {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return decodeRecord(gjson.ParseBytes(data), loc)
}

func decodeRecord(item gjson.Result, loc *time.Location) Record {
	if !item.IsObject() {
		v := fromResult(item, 0)
		return Record{orig: &v}
	}

	var r Record
	item.ForEach(func(key, val gjson.Result) bool {
		switch key.Str {
		case fieldType:
			if val.Type != gjson.Null {
				r.Type = val.String()
			}
		case fieldPlayer:
			if val.Type != gjson.Null {
				p := val.String()
				r.Player = &p
			}
		case fieldTimestamp:
			r.Timestamp = val.String()
			r.tsNumeric = val.Type == gjson.Number
			if r.tsNumeric {
				r.Time, r.TimeValid = parseEpoch(val.Raw)
			} else {
				r.Time, r.TimeValid = ParseTimestamp(r.Timestamp, loc)
			}
		case fieldDetails:
			r.Details = fromResult(val, 0)
		default:
			r.Extra = append(r.Extra, F(key.Str, fromResult(val, 0)))
		}
		return true
	})
	return r
}

// MarshalJSON writes the record in wire form. Absent fields are omitted so
// a decode of the output yields an equal Record.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.orig != nil {
		return r.orig.MarshalJSON()
	}

	fields := make([]Field, 0, 4+len(r.Extra))
	fields = append(fields, F(fieldType, String(r.Type)))
	if r.Player != nil {
		fields = append(fields, F(fieldPlayer, String(*r.Player)))
	}
	if r.tsNumeric {
		fields = append(fields, F(fieldTimestamp, Number(r.Timestamp)))
	} else {
		fields = append(fields, F(fieldTimestamp, String(r.Timestamp)))
	}
	fields = append(fields, F(fieldDetails, r.Details))
	fields = append(fields, r.Extra...)
	return appendObject(nil, fields)
}

// MarshalRecords encodes records as an indented JSON array.
func MarshalRecords(records []Record) ([]byte, error) {
	raw := make([]json.RawMessage, len(records))
	for i, r := range records {
		b, err := r.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encoding record %d: %w", i, err)
		}
		raw[i] = b
	}
	return json.MarshalIndent(raw, "", "  ")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTimestamp parses the timestamp formats the ServerEye backend and
// similar producers emit. Zone-less layouts are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if isDigits(s) {
		return parseEpoch(s)
	}
	return time.Time{}, false
}

// parseEpoch reads integer epoch seconds or milliseconds. Values above
// 1e11 are taken as milliseconds.
func parseEpoch(s string) (time.Time, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return time.Time{}, false
		}
		n = int64(f)
	}
	if n < 0 {
		return time.Time{}, false
	}
	if n > 1e11 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
