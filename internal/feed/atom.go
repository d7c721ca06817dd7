// Package feed implements the fast read channel: an authenticated fetch of
// the mailbox's Atom feed of recent messages, plus candidate selection
// against the match target.
package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Entry is one recent-message record from the feed channel.
type Entry struct {
	Title       string
	ID          string
	Issued      string
	Modified    string
	Summary     string
	AuthorName  string
	AuthorEmail string
}

// The Gmail feed still speaks the pre-RFC4287 Atom 0.3 dialect
// (xmlns="http://purl.org/atom/ns#"); element local names are stable.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title    string     `xml:"title"`
	ID       string     `xml:"id"`
	Issued   string     `xml:"issued"`
	Modified string     `xml:"modified"`
	Summary  string     `xml:"summary"`
	Author   atomAuthor `xml:"author"`
}

type atomAuthor struct {
	Name  string `xml:"name"`
	Email string `xml:"email"`
}

// ParseEntries decodes a feed payload into entries, preserving feed order
// (most recent first).
func ParseEntries(payload []byte) ([]Entry, error) {
	var doc atomFeed
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	entries := make([]Entry, 0, len(doc.Entries))
	for _, raw := range doc.Entries {
		entries = append(entries, Entry{
			Title:       strings.TrimSpace(raw.Title),
			ID:          strings.TrimSpace(raw.ID),
			Issued:      strings.TrimSpace(raw.Issued),
			Modified:    strings.TrimSpace(raw.Modified),
			Summary:     strings.TrimSpace(raw.Summary),
			AuthorName:  strings.TrimSpace(raw.Author.Name),
			AuthorEmail: strings.TrimSpace(raw.Author.Email),
		})
	}
	return entries, nil
}
