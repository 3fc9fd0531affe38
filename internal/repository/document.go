package repository

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"planner-agent/internal/model"
)

// Document is the logical single-file layout: one collection per category.
type Document map[model.Category][]model.Entry

// NewDocument groups entries by category, keeping their order. Every category
// is present even when empty.
func NewDocument(entries []model.Entry) Document {
	doc := make(Document, len(model.Categories))
	for _, c := range model.Categories {
		doc[c] = []model.Entry{}
	}
	for _, e := range entries {
		doc[e.Category] = append(doc[e.Category], e)
	}
	return doc
}

// Entries flattens the document in category order.
func (d Document) Entries() []model.Entry {
	var out []model.Entry
	for _, c := range model.Categories {
		out = append(out, d[c]...)
	}
	return out
}

// Encode writes the document as indented JSON.
func (d Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[model.Category][]model.Entry(d)); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// DecodeDocument reads a document. Legacy collection names ("days", "annis")
// are accepted; an unknown collection is an error rather than silently lost.
func DecodeDocument(r io.Reader) (Document, error) {
	var raw map[string][]model.Entry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc := NewDocument(nil)
	for key, entries := range raw {
		category, err := model.ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		for _, e := range entries {
			e.Category = category
			doc[category] = append(doc[category], e)
		}
	}
	return doc, nil
}

// FillIDs gives entries without an id a fresh one derived from now, unique
// within their category.
func (d Document) FillIDs(now time.Time) int {
	filled := 0
	for category, entries := range d {
		used := make(map[int64]struct{}, len(entries))
		for _, e := range entries {
			used[e.ID] = struct{}{}
		}
		next := now.Unix()
		for i := range entries {
			if entries[i].ID != 0 {
				continue
			}
			for {
				if _, taken := used[next]; !taken {
					break
				}
				next++
			}
			entries[i].ID = next
			used[next] = struct{}{}
			filled++
		}
		d[category] = entries
	}
	return filled
}
