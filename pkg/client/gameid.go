package client

import (
	"strings"

	"github.com/google/uuid"
)

// ParseGameID reads the game id from a link such as https://host/#<id>, a
// bare "#<id>" fragment or a plain id. It reports true when the link names
// no game and a new id was generated.
func ParseGameID(link string) (string, bool) {
	link = strings.TrimSpace(link)
	if i := strings.LastIndex(link, "#"); i >= 0 {
		link = link[i+1:]
	} else if strings.Contains(link, "://") {
		link = ""
	}
	link = strings.TrimSpace(link)
	if link == "" {
		return uuid.NewString(), true
	}
	return link, false
}
