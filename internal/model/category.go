package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCategory is returned for a category outside the closed set.
var ErrInvalidCategory = errors.New("invalid category")

// Category partitions entries. The set is closed; see Categories.
type Category string

const (
	CategoryTodo        Category = "todo"
	CategoryReminder    Category = "reminder"
	CategoryDay         Category = "day"
	CategoryAnniversary Category = "anniversary"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryTodo, CategoryReminder, CategoryDay, CategoryAnniversary}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTodo, CategoryReminder, CategoryDay, CategoryAnniversary:
		return true
	}
	return false
}

// Scheduled reports whether entries of c drive one-shot notification jobs.
func (c Category) Scheduled() bool {
	return c == CategoryReminder
}

// DateOnly reports whether c stores a calendar date rather than a point in time.
func (c Category) DateOnly() bool {
	return c == CategoryDay || c == CategoryAnniversary
}

// ParseCategory maps user input (including legacy document keys) to a Category.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "todo", "todos":
		return CategoryTodo, nil
	case "reminder", "reminders", "remind":
		return CategoryReminder, nil
	case "day", "days":
		return CategoryDay, nil
	case "anniversary", "anniversaries", "anni", "annis":
		return CategoryAnniversary, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
}
