package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	// DateLayout is the canonical text form for day and anniversary entries.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the canonical text form for reminder entries.
	DateTimeLayout = "2006-01-02T15:04"
)

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	DateTimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// Timestamp is the stored text of an entry's point in time. Zone-less forms are
// interpreted in the scheduler's location; RFC 3339 values keep their offset.
type Timestamp string

// NewDateTime formats t as a reminder timestamp using t's wall clock.
func NewDateTime(t time.Time) Timestamp {
	return Timestamp(t.Format(DateTimeLayout))
}

// NewDate formats t as a calendar date using t's wall clock.
func NewDate(t time.Time) Timestamp {
	return Timestamp(t.Format(DateLayout))
}

func (ts Timestamp) IsZero() bool {
	return strings.TrimSpace(string(ts)) == ""
}

// Time parses the timestamp, resolving zone-less values in loc.
func (ts Timestamp) Time(loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(string(ts))
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// Entry is one persisted todo, reminder, day or anniversary.
type Entry struct {
	ID        int64
	Category  Category
	Title     string
	Note      string
	Tags      []string
	Timestamp Timestamp
	// Extra keeps fields this version does not know so documents round-trip.
	Extra map[string]json.RawMessage
}

// Fields carries the caller-supplied content of a new entry.
type Fields struct {
	Title     string   `validate:"required,max=256"`
	Note      string   `validate:"max=4096"`
	Tags      []string `validate:"max=32,dive,max=64"`
	Timestamp Timestamp
	Extra     map[string]json.RawMessage
}

// Patch is a partial update. Nil members are left unchanged; a non-nil empty
// Tags slice clears the tags.
type Patch struct {
	Title          *string
	Note           *string
	Tags           []string
	Timestamp      *Timestamp
	ClearTimestamp bool
	Extra          map[string]json.RawMessage
}

// NewEntry builds an entry from fields. Category and ID are assigned by the store.
func NewEntry(category Category, id int64, f Fields) Entry {
	e := Entry{
		ID:        id,
		Category:  category,
		Title:     strings.TrimSpace(f.Title),
		Note:      strings.TrimSpace(f.Note),
		Tags:      copyTags(f.Tags),
		Timestamp: Timestamp(strings.TrimSpace(string(f.Timestamp))),
	}
	if len(f.Extra) > 0 {
		e.Extra = make(map[string]json.RawMessage, len(f.Extra))
		for k, v := range f.Extra {
			e.Extra[k] = v
		}
	}
	return e
}

// Apply merges p into a copy of e and returns it. Category and ID never change.
func (e Entry) Apply(p Patch) Entry {
	out := e.Clone()
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Note != nil {
		out.Note = strings.TrimSpace(*p.Note)
	}
	if p.Tags != nil {
		out.Tags = copyTags(p.Tags)
	}
	if p.Timestamp != nil {
		out.Timestamp = Timestamp(strings.TrimSpace(string(*p.Timestamp)))
	}
	if p.ClearTimestamp {
		out.Timestamp = ""
	}
	if len(p.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage, len(p.Extra))
		}
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Clone returns a deep copy.
func (e Entry) Clone() Entry {
	out := e
	out.Tags = copyTags(e.Tags)
	if e.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// OccursOn reports whether a day or anniversary entry falls on day (in loc).
// Day entries match their literal date; anniversaries match month and day in
// any year, and a 29 February anniversary is observed on 28 February in
// common years.
func (e Entry) OccursOn(day time.Time, loc *time.Location) (bool, error) {
	if !e.Category.DateOnly() {
		return false, nil
	}
	t, err := e.Timestamp.Time(loc)
	if err != nil {
		return false, err
	}
	day = day.In(loc)
	y, m, d := day.Date()
	switch e.Category {
	case CategoryDay:
		ty, tm, td := t.Date()
		return ty == y && tm == m && td == d, nil
	default:
		if t.Month() == m && t.Day() == d {
			return true, nil
		}
		return t.Month() == time.February && t.Day() == 29 &&
			m == time.February && d == 28 && !isLeap(y), nil
	}
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// MarshalJSON writes the entry as a flat object, merging Extra back in.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+5)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["id"] = e.ID
	out["title"] = e.Title
	if e.Note != "" {
		out["note"] = e.Note
	}
	if len(e.Tags) > 0 {
		out["tags"] = e.Tags
	}
	if !e.Timestamp.IsZero() {
		out["timestamp"] = string(e.Timestamp)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the current layout and the legacy "datetime"/"date"
// keys; unknown keys land in Extra. Category is set by the enclosing document.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var stamps [3]string
	for key, value := range raw {
		var err error
		switch key {
		case "id":
			err = json.Unmarshal(value, &e.ID)
		case "title":
			err = json.Unmarshal(value, &e.Title)
		case "note":
			err = json.Unmarshal(value, &e.Note)
		case "tags":
			var tags []string
			tags, err = decodeTags(value)
			e.Tags = copyTags(tags)
		case "timestamp":
			err = json.Unmarshal(value, &stamps[0])
		case "datetime":
			err = json.Unmarshal(value, &stamps[1])
		case "date":
			err = json.Unmarshal(value, &stamps[2])
		default:
			if e.Extra == nil {
				e.Extra = make(map[string]json.RawMessage)
			}
			e.Extra[key] = append(json.RawMessage(nil), value...)
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
	}
	for _, s := range stamps {
		if strings.TrimSpace(s) != "" {
			e.Timestamp = Timestamp(s)
			break
		}
	}
	return nil
}

// copyTags copies tags; an empty list is always nil.
func copyTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	return append([]string(nil), tags...)
}

func decodeTags(value json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(value, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(value, &single); err != nil {
		return nil, err
	}
	if strings.TrimSpace(single) == "" {
		return nil, nil
	}
	return []string{single}, nil
}
