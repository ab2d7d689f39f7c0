package event

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeRecords_Basic(t *testing.T) {
	body := `[
  {"event":"player_join","player":"alice_99","timestamp":"2024-05-01T10:00:00Z","details":{"ip":"10.0.0.1","world":"overworld"}},
  {"event":"chat_message","player":"Bob","timestamp":"2024-05-01T10:01:00Z","details":{"message":"hi"}}
]`
	records, err := DecodeRecords([]byte(body), DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}

	r := records[0]
	if r.Type != TypePlayerJoin {
		t.Errorf("Type = %q, want %q", r.Type, TypePlayerJoin)
	}
	if name, ok := r.PlayerName(); !ok || name != "alice_99" {
		t.Errorf("PlayerName() = %q, %v", name, ok)
	}
	if !r.TimeValid || !r.Time.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Time = %v (valid=%v)", r.Time, r.TimeValid)
	}
	if r.Details.Kind() != KindObject || r.Details.Len() != 2 {
		t.Fatalf("Details = %v/%d, want object with 2 fields", r.Details.Kind(), r.Details.Len())
	}
	if r.Details.Fields()[0].Key != "ip" || r.Details.Fields()[1].Key != "world" {
		t.Error("details key order not preserved")
	}
}

func TestDecodeRecords_MalformedRecordsDegrade(t *testing.T) {
	body := `[
  {"event":"block_break","timestamp":"not a time"},
  {"event":"custom_thing","player":null,"timestamp":1714557600000,"details":"plain"},
  42,
  {"player":7}
]`
	records, err := DecodeRecords([]byte(body), DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("len = %d, want 4 (no record dropped)", len(records))
	}

	if records[0].TimeValid {
		t.Error("unparsable timestamp should be invalid")
	}
	if _, ok := records[0].PlayerName(); ok {
		t.Error("missing player should be absent")
	}
	if !records[0].Details.IsAbsent() {
		t.Error("missing details should be absent")
	}

	if _, ok := records[1].PlayerName(); ok {
		t.Error("null player should be absent")
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if !records[1].TimeValid || !records[1].Time.Equal(want) {
		t.Errorf("epoch ms timestamp = %v, want %v", records[1].Time, want)
	}

	if !records[2].Malformed() {
		t.Error("non-object element should be marked malformed")
	}

	if name, ok := records[3].PlayerName(); !ok || name != "7" {
		t.Errorf("numeric player = %q/%v, want \"7\"", name, ok)
	}
}

func TestDecodeRecords_NotAnArray(t *testing.T) {
	for _, body := range []string{`{"event":"x"}`, `not json`, ``} {
		if _, err := DecodeRecords([]byte(body), DecodeOptions{}); err == nil {
			t.Errorf("DecodeRecords(%q) should fail", body)
		}
	}
}

func TestParseTimestamp_Layouts(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00:00.123+08:00", time.Date(2024, 5, 1, 2, 0, 0, 123e6, time.UTC)},
		{"2024-05-01T10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, shanghai)},
		{"2024-05-01 10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, shanghai)},
		{"2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, shanghai)},
		{"1714557600", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, ok := ParseTimestamp(tt.in, shanghai)
		if !ok {
			t.Errorf("ParseTimestamp(%q) failed", tt.in)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "yesterday", "2024-13-45"} {
		if _, ok := ParseTimestamp(bad, nil); ok {
			t.Errorf("ParseTimestamp(%q) should fail", bad)
		}
	}
}

func TestRecord_MarshalRoundTrip(t *testing.T) {
	body := `[
  {"event":"chat_message","player":"alice","timestamp":"2024-05-01T10:00:00Z","details":{"z":1,"a":[1,"two",{"k":null}],"m":"x\ny"},"server":"lobby"},
  {"event":"block_place","timestamp":1714557600,"details":[]},
  "garbage"
]`
	records, err := DecodeRecords([]byte(body), DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	out, err := MarshalRecords(records)
	if err != nil {
		t.Fatal(err)
	}
	again, err := DecodeRecords(out, DecodeOptions{})
	if err != nil {
		t.Fatalf("re-decoding exported records: %v", err)
	}
	if len(again) != len(records) {
		t.Fatalf("len = %d, want %d", len(again), len(records))
	}
	for i := range records {
		if !records[i].Equal(again[i]) {
			t.Errorf("record %d changed across round trip", i)
		}
	}
	if !strings.Contains(string(out), `"server"`) || !strings.Contains(string(out), `"lobby"`) {
		t.Errorf("extra field not exported:\n%s", out)
	}
}
