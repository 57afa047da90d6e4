package pubstatic

import "sort"

// Collections maps a collection name to its items. "all" holds every
// collected item; every tag gets a collection of its own.
type Collections map[string][]*Item

// buildCollections groups items by tag. Items excluded via
// eleventyExcludeFromCollections are rendered but never collected. Every
// collection is sorted by date, then input path.
func buildCollections(items []*Item) Collections {
	c := Collections{"all": nil}
	for _, it := range items {
		if it.excludedFromCollections() {
			continue
		}
		c["all"] = append(c["all"], it)
		for _, tag := range dedupe(it.Tags()) {
			c[tag] = append(c[tag], it)
		}
	}
	for _, list := range c {
		sortByDate(list)
	}
	return c
}

func sortByDate(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].InputPath < items[j].InputPath
	})
}

// Newest returns up to limit items of name, newest first. A limit of zero
// returns them all.
func (c Collections) Newest(name string, limit int) []*Item {
	list := c[name]
	out := make([]*Item, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Names returns the collection names, sorted.
func (c Collections) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
