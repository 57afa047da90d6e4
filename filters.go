package pubstatic

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// readableDateLayout matches "dd LLLL yyyy", e.g. "05 March 2024".
const readableDateLayout = "02 January 2006"

// filterFuncs returns the template filters of the filters plugin. url and
// absoluteUrl are bound to the site's path prefix and base URL.
func filterFuncs(cfg *SiteConfig) map[string]any {
	return map[string]any{
		"readableDate":       readableDate,
		"htmlDateString":     htmlDateString,
		"head":               head,
		"min":                minOf,
		"getKeys":            getKeys,
		"filterTagList":      filterTagList,
		"sortAlphabetically": sortAlphabetically,
		"slugify":            Slugify,
		"joinTags":           JoinTags,
		"url": func(p string) string {
			return WithPathPrefix(cfg.PathPrefix, p)
		},
		"absoluteUrl": func(p string, base ...string) string {
			b := cfg.Metadata.Base
			if len(base) > 0 && base[0] != "" {
				b = base[0]
			}
			return AbsoluteURL(b, p)
		},
	}
}

// readableDate formats t with an optional Go layout and IANA zone.
func readableDate(t time.Time, args ...string) string {
	layout := readableDateLayout
	if len(args) > 0 && args[0] != "" {
		layout = args[0]
	}
	zone := "UTC"
	if len(args) > 1 && args[1] != "" {
		zone = args[1]
	}
	if loc, err := time.LoadLocation(zone); err == nil {
		t = t.In(loc)
	}
	return t.Format(layout)
}

func htmlDateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// head returns the first n elements of a slice, or the last -n when n is
// negative.
func head(list any, n int) (any, error) {
	v := reflect.ValueOf(list)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("head: expected a slice, got %T", list)
	}
	l := v.Len()
	switch {
	case n < 0:
		if -n > l {
			n = -l
		}
		return v.Slice(l+n, l).Interface(), nil
	case n > l:
		n = l
	}
	return v.Slice(0, n).Interface(), nil
}

func minOf(nums ...float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	m := nums[0]
	for _, n := range nums[1:] {
		if n < m {
			m = n
		}
	}
	return m
}

func getKeys(m any) []string {
	v := reflect.ValueOf(m)
	if v.Kind() != reflect.Map {
		return nil
	}
	keys := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		keys = append(keys, fmt.Sprint(k.Interface()))
	}
	sort.Strings(keys)
	return keys
}

// filterTagList removes the structural tags used to build collections.
// tags may be a string, a []string or a YAML list.
func filterTagList(tags any) []string {
	list := Metadata{"tags": tags}.Strings("tags")
	out := make([]string, 0, len(list))
	for _, t := range list {
		if t == "all" || t == "posts" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func sortAlphabetically(vals []string) []string {
	out := append([]string(nil), vals...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}
