// Package types provides data types for persisting hubs, channels, ranks, messages and invites.
package types

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"sort"
	"strings"
	"time"
)

// StoreError satisfies Error interface but allows constant values for
// direct comparison.
type StoreError string

// Error is required by error interface.
func (s StoreError) Error() string {
	return string(s)
}

const (
	// ErrPermissionDenied means the requester lacks the permission for the operation.
	ErrPermissionDenied = StoreError("permission denied")
	// ErrNotFound means the hub, channel, rank, member or invite does not exist.
	ErrNotFound = StoreError("not found")
	// ErrInvalidName means a name is empty, too long or contains control characters.
	ErrInvalidName = StoreError("invalid name")
	// ErrInvalidBody means a message body is empty, too long or not UTF-8.
	ErrInvalidBody = StoreError("invalid body")
	// ErrMalformed means a request argument is out of range or unparsable.
	ErrMalformed = StoreError("malformed")
	// ErrInviteExpired means the invite is past its expiration time.
	ErrInviteExpired = StoreError("invite expired")
	// ErrInviteExhausted means the invite has reached its use limit.
	ErrInviteExhausted = StoreError("invite exhausted")
	// ErrBusy means the hub command queue is full.
	ErrBusy = StoreError("busy")
	// ErrCorruptState means persisted hub state could not be parsed.
	ErrCorruptState = StoreError("corrupt state")
	// ErrStorage means the durable write or read failed.
	ErrStorage = StoreError("storage error")
	// ErrDuplicate means a unique key is already taken.
	ErrDuplicate = StoreError("duplicate value")
	// ErrUnauthenticated means the credential could not be resolved to a user.
	ErrUnauthenticated = StoreError("unauthenticated")
)

// Uid is a database-specific record id, suitable to be used as a primary key.
type Uid uint64

// ZeroUid is a constant representing uninitialized Uid.
const ZeroUid Uid = 0

const (
	uidBase64Unpadded = 11
	uidBase64Padded   = 12
)

// IsZero checks if Uid is uninitialized.
func (uid Uid) IsZero() bool {
	return uid == ZeroUid
}

// Compare returns 0 if uid is equal to u2, 1 if u2 is greater than uid, -1 if u2 is smaller.
func (uid Uid) Compare(u2 Uid) int {
	if uid < u2 {
		return -1
	} else if uid > u2 {
		return 1
	}
	return 0
}

// MarshalBinary converts Uid to byte slice.
func (uid Uid) MarshalBinary() ([]byte, error) {
	dst := make([]byte, 8)
	binary.LittleEndian.PutUint64(dst, uint64(uid))
	return dst, nil
}

// UnmarshalBinary reads Uid from byte slice.
func (uid *Uid) UnmarshalBinary(b []byte) error {
	if len(b) < 8 {
		return errors.New("Uid.UnmarshalBinary: invalid length")
	}
	*uid = Uid(binary.LittleEndian.Uint64(b))
	return nil
}

// UnmarshalText reads Uid from string represented as byte slice.
func (uid *Uid) UnmarshalText(src []byte) error {
	if len(src) == 0 {
		*uid = ZeroUid
		return nil
	}
	if len(src) != uidBase64Unpadded {
		return errors.New("Uid.UnmarshalText: invalid length")
	}
	dec := make([]byte, base64.URLEncoding.DecodedLen(uidBase64Padded))
	for len(src) < uidBase64Padded {
		src = append(src, '=')
	}
	count, err := base64.URLEncoding.Decode(dec, src)
	if count < 8 {
		if err != nil {
			return errors.New("Uid.UnmarshalText: failed to decode " + err.Error())
		}
		return errors.New("Uid.UnmarshalText: failed to decode")
	}
	*uid = Uid(binary.LittleEndian.Uint64(dec))
	return nil
}

// MarshalText converts Uid to string represented as byte slice.
func (uid Uid) MarshalText() ([]byte, error) {
	if uid.IsZero() {
		return []byte{}, nil
	}
	src := make([]byte, 8)
	dst := make([]byte, base64.URLEncoding.EncodedLen(8))
	binary.LittleEndian.PutUint64(src, uint64(uid))
	base64.URLEncoding.Encode(dst, src)
	return dst[0:uidBase64Unpadded], nil
}

// String converts Uid to base64 string.
func (uid Uid) String() string {
	buf, _ := uid.MarshalText()
	return string(buf)
}

// ParseUid parses string NOT prefixed with anything. Returns ZeroUid on failure.
func ParseUid(s string) Uid {
	var uid Uid
	if err := uid.UnmarshalText([]byte(s)); err != nil {
		return ZeroUid
	}
	return uid
}

// UidSlice is a slice of Uids kept in insertion order.
type UidSlice []Uid

// Contains checks if the slice contains the given uid.
func (us UidSlice) Contains(uid Uid) bool {
	for _, u := range us {
		if u == uid {
			return true
		}
	}
	return false
}

// Add appends uid unless it's already present. Returns true if the slice was changed.
func (us *UidSlice) Add(uid Uid) bool {
	if us.Contains(uid) {
		return false
	}
	*us = append(*us, uid)
	return true
}

// Rem removes uid from the slice. Returns true if the slice was changed.
func (us *UidSlice) Rem(uid Uid) bool {
	for i, u := range *us {
		if u == uid {
			*us = append((*us)[:i], (*us)[i+1:]...)
			return true
		}
	}
	return false
}

// Permission is a kind of action which can be granted or denied by a rank.
type Permission int

// Various permission kinds.
const (
	// PermAll matches every permission kind not set explicitly.
	PermAll Permission = iota
	// PermViewChannels allows seeing a channel in the listing.
	PermViewChannels
	// PermReadMessages allows reading channel history.
	PermReadMessages
	// PermSendMessages allows posting to a channel.
	PermSendMessages
	// PermManageChannels allows creating, renaming and deleting channels.
	PermManageChannels
	// PermManageRanks allows creating, editing, deleting, assigning and revoking ranks.
	PermManageRanks
	// PermInvite allows creating and revoking invites.
	PermInvite
	// PermKick allows removing members.
	PermKick
	// PermBan allows banning and unbanning users.
	PermBan
	// PermMute allows muting and unmuting members.
	PermMute
	// PermAdministrate allows changing hub settings.
	PermAdministrate

	permInvalid
)

var permNames = [...]string{
	PermAll:            "all",
	PermViewChannels:   "view_channels",
	PermReadMessages:   "read_messages",
	PermSendMessages:   "send_messages",
	PermManageChannels: "manage_channels",
	PermManageRanks:    "manage_ranks",
	PermInvite:         "invite",
	PermKick:           "kick",
	PermBan:            "ban",
	PermMute:           "mute",
	PermAdministrate:   "administrate",
}

// IsChannelScoped checks if the permission may be overridden per channel.
func (p Permission) IsChannelScoped() bool {
	return p == PermAll || p == PermViewChannels || p == PermReadMessages || p == PermSendMessages
}

// String returns the snake_case name of the permission.
func (p Permission) String() string {
	if p < 0 || p >= permInvalid {
		return ""
	}
	return permNames[p]
}

// MarshalText converts Permission to its name.
func (p Permission) MarshalText() ([]byte, error) {
	if s := p.String(); s != "" {
		return []byte(s), nil
	}
	return nil, errors.New("Permission.MarshalText: invalid value")
}

// UnmarshalText parses permission name.
func (p *Permission) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for i, n := range permNames {
		if n == name {
			*p = Permission(i)
			return nil
		}
	}
	return errors.New("Permission.UnmarshalText: unknown permission '" + string(b) + "'")
}

// PermSetting is a tri-state value of a permission in a rank.
type PermSetting int

const (
	// PermUnset means the rank neither grants nor denies.
	PermUnset PermSetting = iota
	// PermAllow grants the permission.
	PermAllow
	// PermDeny denies the permission.
	PermDeny
)

// MarshalText converts PermSetting to "allow", "deny" or "unset".
func (s PermSetting) MarshalText() ([]byte, error) {
	switch s {
	case PermAllow:
		return []byte("allow"), nil
	case PermDeny:
		return []byte("deny"), nil
	case PermUnset:
		return []byte("unset"), nil
	}
	return nil, errors.New("PermSetting.MarshalText: invalid value")
}

// UnmarshalText parses PermSetting.
func (s *PermSetting) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "allow", "true":
		*s = PermAllow
	case "deny", "false":
		*s = PermDeny
	case "unset", "", "none":
		*s = PermUnset
	default:
		return errors.New("PermSetting.UnmarshalText: invalid value '" + string(b) + "'")
	}
	return nil
}

// PermSet maps permission kinds to settings. Unset permissions are omitted.
type PermSet map[Permission]PermSetting

// Get returns the setting for p, PermUnset if missing.
func (ps PermSet) Get(p Permission) PermSetting {
	if ps == nil {
		return PermUnset
	}
	return ps[p]
}

// Merge applies update to ps: PermUnset values remove the entry.
func (ps PermSet) Merge(update PermSet) {
	for p, s := range update {
		if s == PermUnset {
			delete(ps, p)
		} else {
			ps[p] = s
		}
	}
}

func (ps PermSet) clone() PermSet {
	if ps == nil {
		return nil
	}
	out := make(PermSet, len(ps))
	for k, v := range ps {
		out[k] = v
	}
	return out
}

// Rank is a named permission bundle scoped to a hub.
type Rank struct {
	Id   Uid    `json:"id"`
	Name string `json:"name"`
	// Higher priority wins when ranks conflict.
	Priority int `json:"priority"`
	// Creation order within the hub. Breaks priority ties: later rank wins.
	Seq       int       `json:"seq"`
	CreatedAt time.Time `json:"created"`
	// Hub-wide settings.
	Perms PermSet `json:"perms,omitempty"`
	// Per-channel overrides of channel-scoped permissions.
	Channels map[Uid]PermSet `json:"channels,omitempty"`
}

// ChannelSetting returns the rank's setting of p for the given channel, falling back
// from a channel override to the hub-wide value.
func (r *Rank) ChannelSetting(channel Uid, p Permission) PermSetting {
	if !channel.IsZero() {
		if s := r.Channels[channel].Get(p); s != PermUnset {
			return s
		}
	}
	return r.Perms.Get(p)
}

// Clone makes a deep copy of the rank.
func (r *Rank) Clone() *Rank {
	out := *r
	out.Perms = r.Perms.clone()
	if r.Channels != nil {
		out.Channels = make(map[Uid]PermSet, len(r.Channels))
		for ch, ps := range r.Channels {
			out.Channels[ch] = ps.clone()
		}
	}
	return &out
}

// Channel is a named message stream within a hub.
type Channel struct {
	Id          Uid       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Seq         int       `json:"seq"`
	CreatedAt   time.Time `json:"created"`
	// Highest message SeqId handed out but never stored. Message ids start above it after a reload.
	BurnedSeq int `json:"burned_seq,omitempty"`
}

// Member is a user's membership record in a hub.
type Member struct {
	// Assigned ranks in assignment order.
	Ranks    UidSlice  `json:"ranks"`
	JoinedAt time.Time `json:"joined"`
	Muted    bool      `json:"muted,omitempty"`
	// Display name within the hub. Empty means none.
	Nickname string `json:"nickname,omitempty"`
}

// Clone makes a deep copy of the member record.
func (m *Member) Clone() *Member {
	out := *m
	out.Ranks = append(UidSlice(nil), m.Ranks...)
	return &out
}

// Hub is the root aggregate: complete state of a single hub.
type Hub struct {
	Id        Uid       `json:"id"`
	Name      string    `json:"name"`
	Owner     Uid       `json:"owner"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`

	Channels map[Uid]*Channel `json:"channels"`
	Ranks    map[Uid]*Rank    `json:"ranks"`
	Members  map[Uid]*Member  `json:"members"`
	// Banned users and the time of the ban.
	Bans map[Uid]time.Time `json:"bans,omitempty"`
	// Rank assigned to new members.
	DefaultRank Uid `json:"default_rank"`
	// Counter for channel and rank creation order.
	LastSeq int `json:"last_seq"`
}

// NextSeq advances and returns the creation counter.
func (h *Hub) NextSeq() int {
	h.LastSeq++
	return h.LastSeq
}

// IsMember checks if uid is a member of the hub. The owner is always a member.
func (h *Hub) IsMember(uid Uid) bool {
	if uid == h.Owner {
		return true
	}
	_, ok := h.Members[uid]
	return ok
}

// MemberRanks returns rank ids assigned to uid.
func (h *Hub) MemberRanks(uid Uid) UidSlice {
	if m := h.Members[uid]; m != nil {
		return m.Ranks
	}
	return nil
}

// SortedChannels returns channels in creation order.
func (h *Hub) SortedChannels() []*Channel {
	out := make([]*Channel, 0, len(h.Channels))
	for _, ch := range h.Channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// SortedRanks returns ranks by descending priority, then by descending creation order.
func (h *Hub) SortedRanks() []*Rank {
	out := make([]*Rank, 0, len(h.Ranks))
	for _, r := range h.Ranks {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Seq > out[j].Seq
	})
	return out
}

// Clone makes a deep copy of the hub state.
func (h *Hub) Clone() *Hub {
	out := *h
	out.Channels = make(map[Uid]*Channel, len(h.Channels))
	for id, ch := range h.Channels {
		c := *ch
		out.Channels[id] = &c
	}
	out.Ranks = make(map[Uid]*Rank, len(h.Ranks))
	for id, r := range h.Ranks {
		out.Ranks[id] = r.Clone()
	}
	out.Members = make(map[Uid]*Member, len(h.Members))
	for id, m := range h.Members {
		out.Members[id] = m.Clone()
	}
	if h.Bans != nil {
		out.Bans = make(map[Uid]time.Time, len(h.Bans))
		for id, t := range h.Bans {
			out.Bans[id] = t
		}
	}
	return &out
}

// Message is a stored chat message.
type Message struct {
	Hub     Uid `json:"hub"`
	Channel Uid `json:"channel"`
	// Sequential id of the message within the channel.
	SeqId     int       `json:"seq"`
	From      Uid       `json:"from"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"ts"`
}

// Invite is a redeemable grant of hub membership.
type Invite struct {
	Token     string    `json:"token"`
	Hub       Uid       `json:"hub"`
	CreatedBy Uid       `json:"created_by"`
	CreatedAt time.Time `json:"created"`
	// Zero time means the invite does not expire.
	ExpiresAt time.Time `json:"expires,omitempty"`
	// Zero means unlimited.
	MaxUses int `json:"max_uses,omitempty"`
	Uses    int `json:"uses"`
}

// IsExpired checks if the invite is past its expiration time.
func (i *Invite) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// IsExhausted checks if the invite reached its use limit.
func (i *Invite) IsExhausted() bool {
	return i.MaxUses > 0 && i.Uses >= i.MaxUses
}

// BrowseOpt sets limits on reading message history.
type BrowseOpt struct {
	// Return messages with SeqId at or below this value. 0 means latest.
	Before int
	// Maximum number of messages to return.
	Limit int
}

// TimeNow returns current wall time in UTC rounded to milliseconds.
func TimeNow() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
