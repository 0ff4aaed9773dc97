package cache

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	PostsPattern  = "posts:*"
	SearchPattern = "search:*"
)

var whitespace = regexp.MustCompile(`\s+`)

func PostKey(id string) string { return "post:" + id }

func PostsPageKey(page, limit int) string { return fmt.Sprintf("posts:%d:%d", page, limit) }

func MediaKey(id string) string { return "media:" + id }

func SearchKey(query string) string { return "search:" + NormalizeQuery(query) }

// NormalizeQuery trims and lowercases the query and turns every inner
// whitespace run into a single underscore, so " Go  News " and "go news"
// share an entry.
func NormalizeQuery(query string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(query)), "_")
}
