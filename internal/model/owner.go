package model

import "time"

// Owner is a Telegram account allowed to use the console, as last seen.
type Owner struct {
	TelegramID int64 `gorm:"primaryKey;autoIncrement:false"`
	FirstName  string
	Username   string
	LastSeenAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Label is the display name of the owner.
func (o Owner) Label() string {
	if o.Username != "" {
		return "@" + o.Username
	}
	if o.FirstName != "" {
		return o.FirstName
	}
	return "unknown"
}
