// Package format turns event records into what the dashboard and the
// terminal show: flat detail lines, event cards and relative times.
package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/i18n"
)

// DefaultMaxDepth bounds how deep Details descends into nested values.
const DefaultMaxDepth = 8

// Keys of a chat-history item as the ServerEye plugin reports them.
const (
	ChatSourceKey   = "源消息"
	ChatLanguageKey = "客户端语言"
	ChatClientKey   = "客户端消息"
	ChatTimeKey     = "时间戳"
)

// maxInline is the largest object rendered on a single line.
const maxInline = 3

// Localizer supplies labels and fixed strings. *i18n.Catalog implements it.
type Localizer interface {
	Label(key string) string
	T(key string, args ...any) string
	EventType(t string) string
	TimeLayout() string
}

// Options controls formatting. The zero value uses the default catalog,
// DefaultMaxDepth and UTC.
type Options struct {
	Localizer Localizer
	MaxDepth  int
	Location  *time.Location
}

func (o Options) withDefaults() Options {
	if o.Localizer == nil {
		o.Localizer = i18n.MustLoad(i18n.Default)
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// LineKind says how a Line is drawn.
type LineKind uint8

const (
	LineText   LineKind = iota // bare text
	LineEntry                  // "label: text"
	LineHeader                 // "label:" followed by deeper lines
	LineItem                   // "- text"
)

// Line is one visual line of formatted details.
type Line struct {
	Depth int      `json:"depth"`
	Kind  LineKind `json:"kind"`
	Label string   `json:"label,omitempty"`
	Text  string   `json:"text,omitempty"`
}

// String renders the line without indentation.
func (l Line) String() string {
	switch l.Kind {
	case LineEntry:
		return l.Label + ": " + l.Text
	case LineHeader:
		return l.Label + ":"
	case LineItem:
		return "- " + l.Text
	default:
		return l.Text
	}
}

// Details formats an event's details payload. It never fails: missing,
// scalar or empty payloads yield a single "no details" line.
func Details(v event.Value, opts Options) []Line {
	f := formatter{opts: opts.withDefaults()}
	return f.top(v)
}

type formatter struct {
	opts  Options
	lines []Line
}

func (f *formatter) t(key string) string { return f.opts.Localizer.T(key) }

func (f *formatter) emit(l Line) { f.lines = append(f.lines, l) }

func (f *formatter) top(v event.Value) []Line {
	if !v.IsContainer() || v.Len() == 0 {
		return []Line{{Kind: LineText, Text: f.t("no_details")}}
	}
	if v.Kind() == event.KindArray {
		f.items(v, 0)
		return f.lines
	}
	if inlineable(v) {
		return []Line{{Kind: LineText, Text: f.inline(v)}}
	}
	f.fields(v, 0)
	return f.lines
}

func (f *formatter) fields(obj event.Value, depth int) {
	for _, fld := range obj.Fields() {
		f.entry(fld.Key, fld.Value, depth)
	}
}

func (f *formatter) entry(key string, v event.Value, depth int) {
	label := f.opts.Localizer.Label(key)

	switch v.Kind() {
	case event.KindAbsent, event.KindNull:
		f.emit(Line{Depth: depth, Kind: LineEntry, Label: label, Text: f.t("no_details")})
	case event.KindString:
		if v.Text() == "" {
			f.emit(Line{Depth: depth, Kind: LineEntry, Label: label, Text: f.t("no_details")})
			return
		}
		segs := splitLines(v.Text())
		if len(segs) == 1 {
			f.emit(Line{Depth: depth, Kind: LineEntry, Label: label, Text: segs[0]})
			return
		}
		f.emit(Line{Depth: depth, Kind: LineHeader, Label: label})
		for _, s := range segs {
			f.emit(Line{Depth: depth + 1, Kind: LineText, Text: s})
		}
	case event.KindArray:
		if v.Len() == 0 {
			f.emit(Line{Depth: depth, Kind: LineEntry, Label: label, Text: f.t("empty")})
			return
		}
		if depth+1 > f.opts.MaxDepth {
			f.emit(Line{Depth: depth, Kind: LineEntry, Label: label, Text: f.t("depth_exceeded")})
			return
		}
		f.emit(Line{Depth: depth, Kind: LineHeader, Label: label})
		f.items(v, depth+1)
	case event.KindObject:
		if v.Len() == 0 {
			f.emit(Line{Depth: depth, Kind: LineEntry, Label: label, Text: f.t("empty")})
			return
		}
		if inlineable(v) {
			f.emit(Line{Depth: depth, Kind: LineEntry, Label: label, Text: f.inline(v)})
			return
		}
		if depth+1 > f.opts.MaxDepth {
			f.emit(Line{Depth: depth, Kind: LineEntry, Label: label, Text: f.t("depth_exceeded")})
			return
		}
		f.emit(Line{Depth: depth, Kind: LineHeader, Label: label})
		f.fields(v, depth+1)
	case event.KindRaw:
		f.emit(Line{Depth: depth, Kind: LineEntry, Label: label, Text: f.t("depth_exceeded")})
	default:
		f.emit(Line{Depth: depth, Kind: LineEntry, Label: label, Text: v.String()})
	}
}

func (f *formatter) items(arr event.Value, depth int) {
	for i, item := range arr.Items() {
		switch item.Kind() {
		case event.KindObject:
			switch {
			case isChatItem(item):
				f.chat(item, depth)
			case item.Len() == 0:
				f.emit(Line{Depth: depth, Kind: LineItem, Text: f.t("empty")})
			case inlineable(item):
				f.emit(Line{Depth: depth, Kind: LineItem, Text: f.inline(item)})
			case depth+1 > f.opts.MaxDepth:
				f.emit(Line{Depth: depth, Kind: LineItem, Text: f.t("depth_exceeded")})
			default:
				f.fields(item, depth)
			}
		case event.KindArray:
			if item.Len() == 0 {
				f.emit(Line{Depth: depth, Kind: LineItem, Text: f.t("empty")})
				continue
			}
			if depth+1 > f.opts.MaxDepth {
				f.emit(Line{Depth: depth, Kind: LineItem, Text: f.t("depth_exceeded")})
				continue
			}
			f.emit(Line{Depth: depth, Kind: LineHeader, Label: "#" + strconv.Itoa(i+1)})
			f.items(item, depth+1)
		case event.KindString:
			if item.Text() == "" {
				f.emit(Line{Depth: depth, Kind: LineItem, Text: f.t("no_details")})
				continue
			}
			segs := splitLines(item.Text())
			f.emit(Line{Depth: depth, Kind: LineItem, Text: segs[0]})
			for _, s := range segs[1:] {
				f.emit(Line{Depth: depth + 1, Kind: LineText, Text: s})
			}
		case event.KindNull:
			f.emit(Line{Depth: depth, Kind: LineItem, Text: f.t("no_details")})
		case event.KindRaw:
			f.emit(Line{Depth: depth, Kind: LineItem, Text: f.t("depth_exceeded")})
		default:
			f.emit(Line{Depth: depth, Kind: LineItem, Text: item.String()})
		}
	}
}

// chat renders one chat-history entry. The client message is shown only
// when it differs from the source message.
func (f *formatter) chat(item event.Value, depth int) {
	src, _ := item.Get(ChatSourceKey)
	f.block(ChatSourceKey, src.String(), depth)

	if lang, ok := item.Get(ChatLanguageKey); ok && !lang.IsBlank() {
		f.emit(Line{Depth: depth, Kind: LineEntry, Label: f.opts.Localizer.Label(ChatLanguageKey), Text: lang.String()})
	}
	if msg, ok := item.Get(ChatClientKey); ok && !msg.IsBlank() && msg.String() != src.String() {
		f.block(ChatClientKey, msg.String(), depth)
	}
	if ts, ok := item.Get(ChatTimeKey); ok && !ts.IsBlank() {
		f.emit(Line{Depth: depth, Kind: LineEntry, Label: f.opts.Localizer.Label(ChatTimeKey), Text: f.chatTime(ts)})
	}
}

// block writes a labelled header with the text on the following lines.
func (f *formatter) block(key, text string, depth int) {
	f.emit(Line{Depth: depth, Kind: LineHeader, Label: f.opts.Localizer.Label(key)})
	for _, s := range splitLines(text) {
		f.emit(Line{Depth: depth + 1, Kind: LineText, Text: s})
	}
}

func (f *formatter) chatTime(v event.Value) string {
	t, ok := event.ParseTimestamp(v.String(), f.opts.Location)
	if !ok {
		return v.String()
	}
	return t.In(f.opts.Location).Format(f.opts.Localizer.TimeLayout())
}

func (f *formatter) inline(obj event.Value) string {
	parts := make([]string, 0, obj.Len())
	for _, fld := range obj.Fields() {
		text := fld.Value.String()
		if text == "" {
			text = f.t("no_details")
		}
		parts = append(parts, f.opts.Localizer.Label(fld.Key)+": "+text)
	}
	return strings.Join(parts, ", ")
}

func isChatItem(v event.Value) bool {
	src, ok := v.Get(ChatSourceKey)
	return ok && !src.IsBlank()
}

// inlineable reports objects of at most maxInline entries whose values are
// all single-line scalars.
func inlineable(obj event.Value) bool {
	if obj.Kind() != event.KindObject || obj.Len() == 0 || obj.Len() > maxInline {
		return false
	}
	for _, fld := range obj.Fields() {
		if !fld.Value.IsScalar() {
			return false
		}
		if fld.Value.Kind() == event.KindString && strings.ContainsAny(fld.Value.Text(), "\r\n") {
			return false
		}
	}
	return true
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}
