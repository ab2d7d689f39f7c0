// Package i18n provides the dashboard's message catalogs used to
// turn detail keys and event types into display text.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Default is the language used when nothing else matches.
const Default = "en"

// Catalog holds the strings for one language.
type Catalog struct {
	name       string
	tag        language.Tag
	timeLayout string
	messages   map[string]string
	eventTypes map[string]string
	labels     map[string]string
}

type catalogFile struct {
	Tag        string            `json:"tag"`
	TimeLayout string            `json:"time_layout"`
	Messages   map[string]string `json:"messages"`
	EventTypes map[string]string `json:"event_types"`
	Labels     map[string]string `json:"labels"`
}

var (
	loadOnce sync.Once
	catalogs map[string]*Catalog
	names    []string
	matcher  language.Matcher
	loadErr  error
)

func load() {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		loadErr = err
		return
	}
	catalogs = make(map[string]*Catalog, len(entries))
	var tags []language.Tag
	for _, e := range entries {
		data, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			loadErr = err
			return
		}
		var f catalogFile
		if err := json.Unmarshal(data, &f); err != nil {
			loadErr = fmt.Errorf("parsing locale %s: %w", e.Name(), err)
			return
		}
		tag, err := language.Parse(f.Tag)
		if err != nil {
			loadErr = fmt.Errorf("locale %s: %w", e.Name(), err)
			return
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		catalogs[name] = &Catalog{
			name:       name,
			tag:        tag,
			timeLayout: f.TimeLayout,
			messages:   f.Messages,
			eventTypes: f.EventTypes,
			labels:     f.Labels,
		}
		names = append(names, name)
	}
	sort.Strings(names)
	// The default language goes first so the matcher falls back to it.
	sort.SliceStable(names, func(i, j int) bool { return names[i] == Default && names[j] != Default })
	for _, n := range names {
		tags = append(tags, catalogs[n].tag)
	}
	matcher = language.NewMatcher(tags)
}

// Languages lists the available catalog names, default first.
func Languages() []string {
	loadOnce.Do(load)
	return append([]string(nil), names...)
}

// Load returns the catalog for name ("en", "zh").
func Load(name string) (*Catalog, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return nil, loadErr
	}
	c, ok := catalogs[name]
	if !ok {
		return nil, fmt.Errorf("unknown language %q (available: %s)", name, strings.Join(names, ", "))
	}
	return c, nil
}

// MustLoad is Load for the embedded catalogs, which are known to parse.
func MustLoad(name string) *Catalog {
	c, err := Load(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Match picks a catalog name from the given preferences, tried in order.
// Each preference may be a plain tag ("zh-CN") or an Accept-Language
// header. Empty preferences are skipped; fallback is used when nothing
// matches.
func Match(fallback string, prefs ...string) string {
	loadOnce.Do(load)
	if loadErr != nil {
		return fallback
	}
	for _, p := range prefs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := catalogs[p]; ok {
			return p
		}
		tags, _, err := language.ParseAcceptLanguage(p)
		if err != nil || len(tags) == 0 {
			continue
		}
		_, idx, conf := matcher.Match(tags...)
		if conf == language.No {
			continue
		}
		return names[idx]
	}
	return fallback
}

// Name is the catalog name, e.g. "zh".
func (c *Catalog) Name() string { return c.name }

// Tag is the BCP 47 tag, for the page's lang attribute.
func (c *Catalog) Tag() string { return c.tag.String() }

// TimeLayout is the absolute timestamp layout for this language.
func (c *Catalog) TimeLayout() string { return c.timeLayout }

// T looks up a message and formats it with args. Unknown keys are
// returned as is.
func (c *Catalog) T(key string, args ...any) string {
	msg, ok := c.messages[key]
	if !ok {
		msg = key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// EventType returns the display name of an event type, or the type itself
// when it is not a known one.
func (c *Catalog) EventType(t string) string {
	if name, ok := c.eventTypes[t]; ok {
		return name
	}
	return t
}

// Label implements format.Localizer. It never returns an empty label.
func (c *Catalog) Label(key string) string {
	if l, ok := c.labels[key]; ok {
		return l
	}
	if l := NormalizeKey(key); l != "" {
		return l
	}
	if k := strings.TrimSpace(key); k != "" {
		return k
	}
	return c.T("unnamed")
}

// NormalizeKey is the label used for keys without a translation: lower
// case with underscores, dashes and dots turned into single spaces.
func NormalizeKey(key string) string {
	key = strings.ToLower(key)
	key = strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.':
			return ' '
		}
		return r
	}, key)
	return strings.Join(strings.Fields(key), " ")
}
