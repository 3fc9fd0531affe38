package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"planner-agent/internal/model"
)

var errNoTitle = errors.New("title is required")

var dateTimeInputs = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// parseEntryArgs reads "<when> <title words> [#tag ...] [| note]" where <when>
// depends on the category: nothing for todos, a date and time for reminders,
// a date for days and anniversaries.
func parseEntryArgs(category model.Category, args string, loc *time.Location) (model.Fields, error) {
	head, note, _ := strings.Cut(args, "|")
	tokens := strings.Fields(head)

	var fields model.Fields
	switch {
	case category.Scheduled():
		at, rest, err := takeDateTime(tokens, loc)
		if err != nil {
			return fields, err
		}
		fields.Timestamp = model.NewDateTime(at)
		tokens = rest
	case category.DateOnly():
		if len(tokens) == 0 {
			return fields, errors.New("date is required (YYYY-MM-DD)")
		}
		day, err := time.ParseInLocation(model.DateLayout, tokens[0], loc)
		if err != nil {
			return fields, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", tokens[0])
		}
		fields.Timestamp = model.NewDate(day)
		tokens = tokens[1:]
	}

	var words []string
	for _, tok := range tokens {
		if len(tok) > 1 && strings.HasPrefix(tok, "#") {
			fields.Tags = append(fields.Tags, strings.TrimPrefix(tok, "#"))
			continue
		}
		words = append(words, tok)
	}
	fields.Title = strings.Join(words, " ")
	fields.Note = strings.TrimSpace(note)
	if fields.Title == "" {
		return fields, errNoTitle
	}
	return fields, nil
}

// takeDateTime accepts the instant as one token ("2026-05-01T09:30") or two
// ("2026-05-01 09:30").
func takeDateTime(tokens []string, loc *time.Location) (time.Time, []string, error) {
	if len(tokens) == 0 {
		return time.Time{}, nil, errors.New("date and time are required (YYYY-MM-DD HH:MM)")
	}
	if len(tokens) >= 2 {
		if t, err := time.ParseInLocation(dateTimeInputs[0], tokens[0]+" "+tokens[1], loc); err == nil {
			return t, tokens[2:], nil
		}
	}
	for _, layout := range dateTimeInputs[1:] {
		if t, err := time.ParseInLocation(layout, tokens[0], loc); err == nil {
			return t, tokens[1:], nil
		}
	}
	return time.Time{}, nil, fmt.Errorf("invalid date/time %q, expected YYYY-MM-DD HH:MM", strings.Join(tokens[:min(2, len(tokens))], " "))
}

// parseReschedule reads "<id> <YYYY-MM-DD HH:MM>".
func parseReschedule(args string, loc *time.Location) (int64, model.Timestamp, error) {
	tokens := strings.Fields(args)
	if len(tokens) < 2 {
		return 0, "", errors.New("usage: /reschedule <id> <YYYY-MM-DD HH:MM>")
	}
	id, err := parseID(tokens[0])
	if err != nil {
		return 0, "", err
	}
	at, rest, err := takeDateTime(tokens[1:], loc)
	if err != nil {
		return 0, "", err
	}
	if len(rest) > 0 {
		return 0, "", fmt.Errorf("unexpected %q", strings.Join(rest, " "))
	}
	return id, model.NewDateTime(at), nil
}

// parseTarget reads "<category> <id>".
func parseTarget(args string) (model.Category, int64, error) {
	tokens := strings.Fields(args)
	if len(tokens) != 2 {
		return "", 0, errors.New("usage: /delete <category> <id>")
	}
	category, err := model.ParseCategory(tokens[0])
	if err != nil {
		return "", 0, err
	}
	id, err := parseID(tokens[1])
	if err != nil {
		return "", 0, err
	}
	return category, id, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
