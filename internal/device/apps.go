package device

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultApps maps display names to Android package ids for the apps the
// model is told about.
var defaultApps = map[string]string{
	"Settings":          "com.android.settings",
	"Clock":             "com.android.deskclock",
	"Contacts":          "com.android.contacts",
	"Files":             "com.android.fileexplorer",
	"File Manager":      "com.android.fileexplorer",
	"AudioRecorder":     "com.android.soundrecorder",
	"Chrome":            "com.android.chrome",
	"Google Chrome":     "com.android.chrome",
	"Gmail":             "com.google.android.gm",
	"Google Calendar":   "com.google.android.calendar",
	"Google Clock":      "com.google.android.deskclock",
	"Google Contacts":   "com.google.android.contacts",
	"Google Docs":       "com.google.android.apps.docs.editors.docs",
	"Google Drive":      "com.google.android.apps.docs",
	"Google Keep":       "com.google.android.keep",
	"Google Maps":       "com.google.android.apps.maps",
	"Google Play Store": "com.android.vending",
	"Google Tasks":      "com.google.android.apps.tasks",
	"Telegram":          "org.telegram.messenger",
	"WhatsApp":          "com.whatsapp",
	"WeChat":            "com.tencent.mm",
	"Twitter":           "com.twitter.android",
	"X":                 "com.twitter.android",
	"Reddit":            "com.reddit.frontpage",
	"TikTok":            "com.zhiliaoapp.musically",
	"VLC":               "org.videolan.vlc",
	"Booking":           "com.booking",
	"Booking.com":       "com.booking",
	"Expedia":           "com.expedia.bookings",
	"Temu":              "com.einnovation.temu",
	"Duolingo":          "com.duolingo",
	"OsmAnd":            "net.osmand",
	"Joplin":            "net.cozic.joplin",
	"RetroMusic":        "code.name.monkey.retromusic",
	"McDonald's":        "com.mcdonalds.app",
	"Bluecoins":         "com.rammigsoftware.bluecoins",
	"Broccoli":          "com.flauschcode.broccoli",
}

// packageRe is the accepted Android package id syntax.
var packageRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)+$`)

// Catalog maps app display names to package ids. Lookups are
// case-insensitive on the display name.
type Catalog struct {
	byName map[string]string // lowercased name -> package
	names  map[string]string // lowercased name -> display name
}

// DefaultCatalog returns the built-in app set.
func DefaultCatalog() *Catalog {
	c := &Catalog{byName: map[string]string{}, names: map[string]string{}}
	for name, pkg := range defaultApps {
		c.add(name, pkg)
	}
	return c
}

func (c *Catalog) add(name, pkg string) {
	key := strings.ToLower(name)
	c.byName[key] = pkg
	c.names[key] = name
}

// LoadOverrides merges a YAML mapping of display name to package id on top
// of the catalog. Entries with an invalid package id are rejected as a
// whole so a typo cannot silently launch the wrong app.
func (c *Catalog) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read app catalog: %w", err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse app catalog: %w", err)
	}
	for name, pkg := range overrides {
		if !packageRe.MatchString(pkg) {
			return fmt.Errorf("app %q has invalid package id %q", name, pkg)
		}
	}
	for name, pkg := range overrides {
		c.add(name, pkg)
	}
	return nil
}

// Lookup returns the package for a display name.
func (c *Catalog) Lookup(name string) (string, bool) {
	pkg, ok := c.byName[strings.ToLower(name)]
	return pkg, ok
}

// Resolve turns what the model asked to launch into a package id. Known
// display names win; otherwise the value must itself be a syntactically
// valid package id. Anything else is refused so free text never reaches
// the launch command.
func (c *Catalog) Resolve(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if pkg, ok := c.Lookup(raw); ok {
		return pkg, nil
	}
	if packageRe.MatchString(raw) {
		return raw, nil
	}
	return "", fmt.Errorf("unknown app %q", raw)
}

// Names returns the display names in sorted order, for prompts and the
// apps listing.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
