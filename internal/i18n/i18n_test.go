package i18n

import "testing"

func TestLoad(t *testing.T) {
	for _, name := range []string{"en", "zh"} {
		c, err := Load(name)
		if err != nil {
			t.Fatalf("Load(%q): %v", name, err)
		}
		if c.Name() != name {
			t.Errorf("Name() = %q", c.Name())
		}
		if c.T("no_details") == "no_details" {
			t.Errorf("%s: no_details missing", name)
		}
	}
	if _, err := Load("fr"); err == nil {
		t.Error("Load(fr) should fail")
	}
	if langs := Languages(); len(langs) != 2 || langs[0] != Default {
		t.Errorf("Languages() = %v", langs)
	}
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	en, zh := MustLoad("en"), MustLoad("zh")
	for k := range en.messages {
		if _, ok := zh.messages[k]; !ok {
			t.Errorf("zh missing message %q", k)
		}
	}
	for k := range zh.messages {
		if _, ok := en.messages[k]; !ok {
			t.Errorf("en missing message %q", k)
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		prefs []string
		want  string
	}{
		{nil, "en"},
		{[]string{"zh"}, "zh"},
		{[]string{"", "zh-CN,zh;q=0.9,en;q=0.8"}, "zh"},
		{[]string{"en-GB"}, "en"},
		{[]string{"fr-FR", "zh-CN"}, "zh"},
		{[]string{"de"}, "en"},
	}
	for _, tt := range tests {
		if got := Match("en", tt.prefs...); got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.prefs, got, tt.want)
		}
	}
}

func TestCatalog_T(t *testing.T) {
	zh := MustLoad("zh")
	if got := zh.T("minutes_ago", 5); got != "5分钟前" {
		t.Errorf("T(minutes_ago) = %q", got)
	}
	if got := zh.T("missing_key"); got != "missing_key" {
		t.Errorf("unknown key = %q", got)
	}
}

func TestCatalog_EventTypeAndLabel(t *testing.T) {
	en := MustLoad("en")
	if got := en.EventType("block_break"); got != "Block broken" {
		t.Errorf("EventType = %q", got)
	}
	if got := en.EventType("custom_evt"); got != "custom_evt" {
		t.Errorf("unknown type should be literal, got %q", got)
	}
	if got := en.Label("ip"); got != "IP address" {
		t.Errorf("Label(ip) = %q", got)
	}
	if got := en.Label("Server_Name.full-Text"); got != "server name full text" {
		t.Errorf("fallback label = %q", got)
	}
	for key, want := range map[string]string{"": "(unnamed)", "_": "_", "__": "__", " - ": "-"} {
		if got := en.Label(key); got != want {
			t.Errorf("Label(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"__a__b":     "a b",
		"CamelCase":  "camelcase",
		"x.y-z_w":    "x y z w",
		"  spaced  ": "spaced",
		"源消息":        "源消息",
	}
	for in, want := range tests {
		if got := NormalizeKey(in); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}
