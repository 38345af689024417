// Package adapter contains the interfaces to be implemented by the database adapter
package adapter

import (
	"encoding/json"
	"time"

	t "github.com/hubchat/chat/server/store/types"
)

// HubRecord is the persisted form of a hub: indexed columns plus an opaque snapshot.
type HubRecord struct {
	Id        t.Uid
	Owner     t.Uid
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	// Serialized hub state.
	State []byte
}

// Adapter is the interface that must be implemented by a database
// adapter. The current schema supports a single connection by database type.
type Adapter interface {
	// General

	// Open and configure the adapter
	Open(config json.RawMessage) error
	// Close the adapter
	Close() error
	// IsOpen checks if the adapter is ready for use
	IsOpen() bool
	// GetDbVersion returns current database version.
	GetDbVersion() (int, error)
	// CheckDbVersion checks if the actual database version matches adapter version.
	CheckDbVersion() error
	// GetName returns the name of the adapter
	GetName() string
	// SetMaxResults configures how many results can be returned in a single DB call.
	SetMaxResults(val int) error
	// CreateDb creates the database optionally dropping an existing database first.
	CreateDb(reset bool) error
	// UpgradeDb upgrades database to the current adapter version.
	UpgradeDb() error
	// Version returns adapter version
	Version() int
	// Stats returns the DB connection stats object.
	Stats() any

	// Hubs

	// HubCreate inserts a new hub record. Returns types.ErrDuplicate if the id is taken.
	HubCreate(rec *HubRecord) error
	// HubGet loads a hub record. Returns (nil, nil) if the hub does not exist.
	HubGet(id t.Uid) (*HubRecord, error)
	// HubUpdate replaces the stored snapshot of an existing hub.
	HubUpdate(rec *HubRecord) error
	// HubDelete deletes the hub together with all its messages and invites.
	HubDelete(id t.Uid) error

	// Messages

	// MessageSave appends a message to the channel log.
	MessageSave(msg *t.Message) error
	// MessageGetAll returns up to opts.Limit newest messages at or before opts.Before, newest first.
	MessageGetAll(hub, channel t.Uid, opts *t.BrowseOpt) ([]t.Message, error)
	// MessageDeleteAll removes the log of a single channel.
	MessageDeleteAll(hub, channel t.Uid) error
	// MessageLastSeq returns the highest message SeqId per channel of the hub.
	MessageLastSeq(hub t.Uid) (map[t.Uid]int, error)

	// Invites

	// InviteCreate stores a new invite.
	InviteCreate(inv *t.Invite) error
	// InviteGet loads an invite by token. Returns (nil, nil) if the invite does not exist.
	InviteGet(token string) (*t.Invite, error)
	// InviteUse increments the use count if the invite is under its cap.
	// Returns types.ErrInviteExhausted if the cap is reached, types.ErrNotFound if there is no such invite.
	InviteUse(token string) error
	// InviteDelete removes an invite.
	InviteDelete(token string) error
	// InvitesForHub returns all invites of a hub ordered by creation time.
	InvitesForHub(hub t.Uid) ([]t.Invite, error)
}
