package catalog

import (
	"fmt"
	"strings"
	"time"
)

// publishedAtLayouts are the date formats seen in the wild across feeds,
// tried in order. First successful parse wins.
var publishedAtLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParsePublishedAt parses an episode publish timestamp, attempting each
// known layout in order. Episodes whose dates fail every layout are
// excluded from autoplay candidacy by the caller.
func ParsePublishedAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty publish date")
	}

	for _, layout := range publishedAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable publish date: %q", value)
}
