package lostfound

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ComposeItemLink builds the public detail link for an item.
func ComposeItemLink(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(id)
}

// ParseItemLink extracts the item id from a public detail link.
func ParseItemLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid link")
	}

	id := path.Base(strings.TrimRight(u.Path, "/"))
	if !IsItemID(id) {
		return "", fmt.Errorf("link does not point at an item")
	}

	return id, nil
}

func IsItemID(id string) bool {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	return parsed.Version() == 4 && len(id) == 36
}
