// Package history persists the rolling snapshot history of monitored items.
package history

import (
	"context"
	"fmt"
	"time"
)

// DefaultCap bounds the number of snapshots kept per item.
const DefaultCap = 100

// Timestamp is a point in time in unix epoch milliseconds, the unit used in
// the persisted document.
type Timestamp int64

// At converts t to a Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts))
}

func (ts Timestamp) IsZero() bool {
	return ts == 0
}

// Snapshot is one observation of an item. A Price of 0 means unknown.
type Snapshot struct {
	Timestamp     Timestamp `json:"timestamp"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"originalPrice,omitempty"`
	Stock         string    `json:"stock"`
	Status        string    `json:"status"`
	URL           string    `json:"url,omitempty"`
}

// ItemHistory is everything remembered about a single item.
type ItemHistory struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Locator           string     `json:"locator"`
	Snapshots         []Snapshot `json:"history"`
	LastNotify        Timestamp  `json:"lastNotify"`
	NotificationCount int        `json:"notifyCount"`
}

// Latest returns the most recent snapshot.
func (h *ItemHistory) Latest() (Snapshot, bool) {
	if len(h.Snapshots) == 0 {
		return Snapshot{}, false
	}
	return h.Snapshots[len(h.Snapshots)-1], true
}

// Append adds s and evicts the oldest snapshots so that at most limit
// remain. A limit <= 0 means DefaultCap.
func (h *ItemHistory) Append(s Snapshot, limit int) {
	if limit <= 0 {
		limit = DefaultCap
	}
	h.Snapshots = append(h.Snapshots, s)
	if over := len(h.Snapshots) - limit; over > 0 {
		h.Snapshots = append([]Snapshot(nil), h.Snapshots[over:]...)
	}
}

// Document is the whole persisted state.
type Document struct {
	Items      map[string]*ItemHistory `json:"items"`
	LastUpdate Timestamp               `json:"lastUpdate"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Items: map[string]*ItemHistory{}}
}

// Item returns the history of id, creating an empty one when the item is
// seen for the first time.
func (d *Document) Item(id, name, locator string) *ItemHistory {
	if d.Items == nil {
		d.Items = map[string]*ItemHistory{}
	}
	h, ok := d.Items[id]
	if !ok {
		h = &ItemHistory{ID: id, Name: name, Locator: locator, Snapshots: []Snapshot{}}
		d.Items[id] = h
	}
	return h
}

// Store loads and saves the whole document. There is no protection against
// concurrent writers.
type Store interface {
	// Load never fails. A missing or unreadable store yields an empty
	// document.
	Load(ctx context.Context) *Document
	// Save replaces the stored document and sets doc.LastUpdate.
	Save(ctx context.Context, doc *Document) error
	Close() error
}

type StoreType string

const (
	FILE_STORE_TYPE   StoreType = "file"
	SQLITE_STORE_TYPE StoreType = "sqlite"
)

// StoreConfig selects and configures the history backend.
type StoreConfig struct {
	Type StoreType `yaml:"type" env:"HISTORY_STORE" env-default:"file"`
	Path string    `yaml:"path" env:"MONITOR_HISTORY_FILE"`
}

// NewStore returns the store described by cfg. defaultPath is used when
// cfg.Path is empty.
func NewStore(ctx context.Context, cfg *StoreConfig, defaultPath string) (Store, error) {
	path := cfg.Path
	if path == "" {
		path = defaultPath
	}
	switch cfg.Type {
	case FILE_STORE_TYPE, "":
		return NewFileStore(path), nil
	case SQLITE_STORE_TYPE:
		return OpenSQLiteStore(ctx, path)
	default:
		return nil, fmt.Errorf("store of type %s not implemented", cfg.Type)
	}
}
