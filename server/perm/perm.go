// Package perm resolves rank-based permissions of hub members.
//
// Each rank a member holds yields at most one setting for the permission in question:
// the channel override of that permission, then the hub-wide value, then the same two
// lookups for PermAll. Among ranks which yield a setting, the one with the highest
// priority decides; of equal priorities the most recently created rank decides.
// If no rank yields a setting, the permission is denied. The hub owner is always allowed.
package perm

import (
	t "github.com/hubchat/chat/server/store/types"
)

// Decision is the outcome of evaluation.
type Decision bool

const (
	// Deny means the action is not permitted.
	Deny Decision = false
	// Allow means the action is permitted.
	Allow Decision = true
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// Evaluate decides if a holder of memberRanks is granted the hub-wide permission p.
func Evaluate(memberRanks []t.Uid, ranks map[t.Uid]*t.Rank, isOwner bool, p t.Permission) Decision {
	return EvaluateChannel(memberRanks, ranks, isOwner, t.ZeroUid, p)
}

// EvaluateChannel decides if a holder of memberRanks is granted the permission p in the channel.
// Zero channel means no channel overrides are consulted.
func EvaluateChannel(memberRanks []t.Uid, ranks map[t.Uid]*t.Rank, isOwner bool, channel t.Uid, p t.Permission) Decision {
	if isOwner {
		return Allow
	}

	var winner *t.Rank
	var decision t.PermSetting
	for _, id := range memberRanks {
		r := ranks[id]
		if r == nil {
			// Dangling reference, rank was deleted.
			continue
		}
		s := r.ChannelSetting(channel, p)
		if s == t.PermUnset && p != t.PermAll {
			s = r.ChannelSetting(channel, t.PermAll)
		}
		if s == t.PermUnset {
			continue
		}
		if winner == nil || outranks(r, winner) {
			winner, decision = r, s
		}
	}

	return Decision(decision == t.PermAllow)
}

// outranks checks if a takes precedence over b.
func outranks(a, b *t.Rank) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Seq > b.Seq
}

// Checker binds evaluation to the state of a single hub.
type Checker struct {
	hub *t.Hub
}

// For returns a Checker over the given hub state.
func For(hub *t.Hub) Checker {
	return Checker{hub: hub}
}

// Can checks if user has hub-wide permission p. Non-members are denied.
func (c Checker) Can(user t.Uid, p t.Permission) bool {
	return c.CanIn(user, t.ZeroUid, p)
}

// CanIn checks if user has permission p in the given channel. Non-members are denied.
func (c Checker) CanIn(user t.Uid, channel t.Uid, p t.Permission) bool {
	if !c.hub.IsMember(user) {
		return false
	}
	return bool(EvaluateChannel(c.hub.MemberRanks(user), c.hub.Ranks, user == c.hub.Owner, channel, p))
}

// CanRead checks if user can both see the channel and read its history.
func (c Checker) CanRead(user t.Uid, channel t.Uid) bool {
	return c.CanIn(user, channel, t.PermViewChannels) && c.CanIn(user, channel, t.PermReadMessages)
}
