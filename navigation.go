package pubstatic

import (
	"sort"
	"strings"
)

// NavigationData is the eleventyNavigation metadata of an item.
type NavigationData struct {
	Key    string `yaml:"key"`
	Parent string `yaml:"parent"`
	Title  string `yaml:"title"`
	Order  int    `yaml:"order"`
	URL    string `yaml:"url"`
}

// NavEntry is one node of the navigation tree.
type NavEntry struct {
	Key      string
	Title    string
	URL      string
	Order    int
	Children []*NavEntry
}

func navigationFromItem(it *Item) (NavigationData, bool) {
	m := it.Data.Map("eleventyNavigation")
	if m == nil || m.String("key") == "" {
		return NavigationData{}, false
	}
	return NavigationData{
		Key:    m.String("key"),
		Parent: m.String("parent"),
		Title:  m.String("title"),
		Order:  m.Int("order", 0),
		URL:    m.String("url"),
	}, true
}

// buildNavigation assembles the tree from item metadata plus entries that
// plugins contribute. Entries whose parent is unknown become roots.
func buildNavigation(items []*Item, extra []NavigationData) []*NavEntry {
	var all []NavigationData
	for _, it := range items {
		nd, ok := navigationFromItem(it)
		if !ok {
			continue
		}
		if nd.URL == "" {
			nd.URL = it.URL
		}
		all = append(all, nd)
	}
	all = append(all, extra...)

	byKey := make(map[string]*NavEntry, len(all))
	for _, nd := range all {
		title := nd.Title
		if title == "" {
			title = nd.Key
		}
		byKey[nd.Key] = &NavEntry{Key: nd.Key, Title: title, URL: nd.URL, Order: nd.Order}
	}
	var roots []*NavEntry
	placed := make(map[string]struct{}, len(all))
	for _, nd := range all {
		if _, dup := placed[nd.Key]; dup {
			continue
		}
		placed[nd.Key] = struct{}{}
		e := byKey[nd.Key]
		if parent, ok := byKey[nd.Parent]; ok && nd.Parent != "" && parent != e {
			parent.Children = append(parent.Children, e)
			continue
		}
		roots = append(roots, e)
	}
	sortNav(roots)
	return roots
}

func sortNav(entries []*NavEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Order != entries[j].Order {
			return entries[i].Order < entries[j].Order
		}
		return strings.ToLower(entries[i].Key) < strings.ToLower(entries[j].Key)
	})
	for _, e := range entries {
		sortNav(e.Children)
	}
}
