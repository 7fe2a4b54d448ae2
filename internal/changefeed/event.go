// Package changefeed carries row-change notifications for cached keys,
// in-process over an event bus and across processes over Redis pub/sub.
package changefeed

import (
	"fmt"
	"strings"
)

// ChangeKind is the mutation that produced an event.
type ChangeKind string

// Change kinds.
const (
	Insert ChangeKind = "INSERT"
	Update ChangeKind = "UPDATE"
	Delete ChangeKind = "DELETE"
)

// ParseChangeKind accepts a kind in any case.
func ParseChangeKind(s string) (ChangeKind, error) {
	switch k := ChangeKind(strings.ToUpper(s)); k {
	case Insert, Update, Delete:
		return k, nil
	}
	return "", fmt.Errorf("unknown change kind %q", s)
}

// Row is the part of a changed row the feed carries.
type Row struct {
	Key string `json:"key"`
}

// Event is one row change.
type Event struct {
	Type  ChangeKind `json:"eventType"`
	Table string     `json:"table,omitempty"`
	New   *Row       `json:"new,omitempty"`
	Old   *Row       `json:"old,omitempty"`
}

// NewEvent builds the event for a mutation of key. Deletes carry the key in
// Old, inserts and updates in New.
func NewEvent(table string, kind ChangeKind, key string) Event {
	ev := Event{Type: kind, Table: table}
	if kind == Delete {
		ev.Old = &Row{Key: key}
	} else {
		ev.New = &Row{Key: key}
	}
	return ev
}

// Key returns the affected key, or "" when the event carries none.
func (e Event) Key() string {
	if e.Type == Delete {
		if e.Old != nil {
			return e.Old.Key
		}
		return ""
	}
	if e.New != nil {
		return e.New.Key
	}
	return ""
}

func (e Event) validate() error {
	if _, err := ParseChangeKind(string(e.Type)); err != nil {
		return err
	}
	if e.Key() == "" {
		return fmt.Errorf("%s event without key", e.Type)
	}
	return nil
}
