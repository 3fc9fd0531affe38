package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"planner-agent/internal/model"
)

// ErrNotFound is returned when no row matches a category and id.
var ErrNotFound = errors.New("entry not found")

// entryRecord is the row layout of one entry.
type entryRecord struct {
	Category  string `gorm:"primaryKey;size:16"`
	EntryID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Seq       int64  `gorm:"index"`
	Title     string
	Note      string
	Tags      string
	Timestamp string
	Extra     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (entryRecord) TableName() string {
	return "entries"
}

// EntryRepository handles CRUD for entries.
type EntryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// ListAll returns every entry in insertion order.
func (r *EntryRepository) ListAll(ctx context.Context) ([]model.Entry, error) {
	var records []entryRecord
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	entries := make([]model.Entry, 0, len(records))
	for _, rec := range records {
		entry, err := rec.toModel()
		if err != nil {
			return nil, fmt.Errorf("decode entry %s/%d: %w", rec.Category, rec.EntryID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Insert appends a new entry after every existing one.
func (r *EntryRepository) Insert(ctx context.Context, entry model.Entry) error {
	rec, err := newRecord(entry)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := nextSeq(tx)
		if err != nil {
			return err
		}
		rec.Seq = seq
		return tx.Create(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

// Save replaces the mutable fields of an existing entry.
func (r *EntryRepository) Save(ctx context.Context, entry model.Entry) error {
	rec, err := newRecord(entry)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&entryRecord{}).
		Where("category = ? AND entry_id = ?", rec.Category, rec.EntryID).
		Updates(map[string]interface{}{
			"title":      rec.Title,
			"note":       rec.Note,
			"tags":       rec.Tags,
			"timestamp":  rec.Timestamp,
			"extra":      rec.Extra,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("update entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one entry.
func (r *EntryRepository) Delete(ctx context.Context, category model.Category, id int64) error {
	res := r.db.WithContext(ctx).
		Where("category = ? AND entry_id = ?", string(category), id).
		Delete(&entryRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Upsert inserts entries or overwrites rows with the same category and id,
// all in one transaction. Used by document import.
func (r *EntryRepository) Upsert(ctx context.Context, entries []model.Entry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := nextSeq(tx)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			rec, err := newRecord(entry)
			if err != nil {
				return err
			}
			rec.Seq = seq
			seq++
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "category"}, {Name: "entry_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "note", "tags", "timestamp", "extra", "updated_at"}),
			}).Create(&rec).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert entries: %w", err)
	}
	return nil
}

func nextSeq(tx *gorm.DB) (int64, error) {
	var last int64
	if err := tx.Model(&entryRecord{}).Select("COALESCE(MAX(seq), 0)").Row().Scan(&last); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return last + 1, nil
}

func newRecord(entry model.Entry) (entryRecord, error) {
	if !entry.Category.Valid() {
		return entryRecord{}, fmt.Errorf("%w: %q", model.ErrInvalidCategory, entry.Category)
	}
	rec := entryRecord{
		Category:  string(entry.Category),
		EntryID:   entry.ID,
		Title:     entry.Title,
		Note:      entry.Note,
		Timestamp: string(entry.Timestamp),
	}
	if len(entry.Tags) > 0 {
		raw, err := json.Marshal(entry.Tags)
		if err != nil {
			return entryRecord{}, fmt.Errorf("encode tags: %w", err)
		}
		rec.Tags = string(raw)
	}
	if len(entry.Extra) > 0 {
		raw, err := json.Marshal(entry.Extra)
		if err != nil {
			return entryRecord{}, fmt.Errorf("encode extra: %w", err)
		}
		rec.Extra = string(raw)
	}
	return rec, nil
}

func (rec entryRecord) toModel() (model.Entry, error) {
	entry := model.Entry{
		ID:        rec.EntryID,
		Category:  model.Category(rec.Category),
		Title:     rec.Title,
		Note:      rec.Note,
		Timestamp: model.Timestamp(rec.Timestamp),
	}
	if rec.Tags != "" {
		if err := json.Unmarshal([]byte(rec.Tags), &entry.Tags); err != nil {
			return model.Entry{}, fmt.Errorf("tags: %w", err)
		}
	}
	if rec.Extra != "" {
		if err := json.Unmarshal([]byte(rec.Extra), &entry.Extra); err != nil {
			return model.Entry{}, fmt.Errorf("extra: %w", err)
		}
	}
	return entry, nil
}
