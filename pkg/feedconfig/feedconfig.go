package feedconfig

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Feed describes one configured podcast feed.
type Feed struct {
	Name    string `yaml:"name"`
	FeedURL string `yaml:"feed_url"`
}

// Groups maps a group name to its ordered list of feeds. The mapping is
// consumed read-only: callers use it to know which feeds belong to which
// group, both for scraping and for scoping exports.
type Groups map[string][]Feed

// Load reads the feed configuration from a YAML file.
func Load(path string) (Groups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var groups Groups
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}

	for name, feeds := range groups {
		for i, feed := range feeds {
			if feed.Name == "" || feed.FeedURL == "" {
				return nil, fmt.Errorf("group %q entry %d: name and feed_url are required", name, i)
			}
		}
	}

	return groups, nil
}

// Group returns the feeds for the named group. The error lists the available
// groups so a typo on the command line is easy to spot.
func (g Groups) Group(name string) ([]Feed, error) {
	feeds, ok := g[name]
	if !ok {
		return nil, fmt.Errorf("group %q not found (available: %v)", name, g.Names())
	}
	return feeds, nil
}

// Names returns the group names in sorted order.
func (g Groups) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FeedNames returns the display names of the feeds in the named group.
func (g Groups) FeedNames(name string) ([]string, error) {
	feeds, err := g.Group(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(feeds))
	for _, feed := range feeds {
		names = append(names, feed.Name)
	}
	return names, nil
}

// AllFeeds returns every configured feed across all groups, group by group in
// sorted group order.
func (g Groups) AllFeeds() []Feed {
	var feeds []Feed
	for _, name := range g.Names() {
		feeds = append(feeds, g[name]...)
	}
	return feeds
}
