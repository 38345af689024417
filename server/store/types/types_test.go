package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestUidText(t *testing.T) {
	uid := Uid(0x1234567890abcdef)
	s := uid.String()
	if len(s) != uidBase64Unpadded {
		t.Fatalf("String() length = %d", len(s))
	}
	if got := ParseUid(s); got != uid {
		t.Errorf("ParseUid(%q) = %v, want %v", s, got, uid)
	}
	if got := ParseUid("not-a-uid"); !got.IsZero() {
		t.Errorf("ParseUid of garbage = %v, want zero", got)
	}
}

func TestUidAsMapKey(t *testing.T) {
	in := map[Uid]bool{Uid(1): true, Uid(77): false}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out map[Uid]bool
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("map mismatch (-want +got):\n%s", diff)
	}
}

func TestPermissionText(t *testing.T) {
	for p := PermAll; p < permInvalid; p++ {
		b, err := p.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", p, err)
		}
		var back Permission
		if err := back.UnmarshalText(b); err != nil || back != p {
			t.Errorf("UnmarshalText(%s) = %v, %v", b, back, err)
		}
	}
	var p Permission
	if err := p.UnmarshalText([]byte("fly")); err == nil {
		t.Error("expected error for unknown permission")
	}
}

func TestPermSetMerge(t *testing.T) {
	ps := PermSet{PermSendMessages: PermAllow, PermKick: PermDeny}
	ps.Merge(PermSet{PermSendMessages: PermUnset, PermBan: PermAllow})
	want := PermSet{PermKick: PermDeny, PermBan: PermAllow}
	if diff := cmp.Diff(want, ps); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}
	var nilSet PermSet
	if nilSet.Get(PermAll) != PermUnset {
		t.Error("nil PermSet must report unset")
	}
}

func TestRankChannelSetting(t *testing.T) {
	ch := Uid(10)
	r := &Rank{
		Perms:    PermSet{PermSendMessages: PermAllow},
		Channels: map[Uid]PermSet{ch: {PermSendMessages: PermDeny}},
	}
	if r.ChannelSetting(ch, PermSendMessages) != PermDeny {
		t.Error("channel override must take precedence")
	}
	if r.ChannelSetting(Uid(11), PermSendMessages) != PermAllow {
		t.Error("hub-wide value expected for channel without override")
	}
}

func TestHubCloneIsDeep(t *testing.T) {
	now := time.Now()
	h := &Hub{
		Id:       Uid(1),
		Owner:    Uid(2),
		Channels: map[Uid]*Channel{Uid(3): {Id: Uid(3), Name: "general"}},
		Ranks: map[Uid]*Rank{Uid(4): {Id: Uid(4), Name: "everyone",
			Perms: PermSet{PermAll: PermAllow}, Channels: map[Uid]PermSet{Uid(3): {PermReadMessages: PermAllow}}}},
		Members: map[Uid]*Member{Uid(2): {Ranks: UidSlice{Uid(4)}, JoinedAt: now}},
		Bans:    map[Uid]time.Time{Uid(9): now},
	}
	c := h.Clone()
	if diff := cmp.Diff(h, c); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	c.Channels[Uid(3)].Name = "renamed"
	c.Ranks[Uid(4)].Perms[PermKick] = PermAllow
	c.Ranks[Uid(4)].Channels[Uid(3)][PermSendMessages] = PermDeny
	c.Members[Uid(2)].Ranks.Add(Uid(5))
	delete(c.Bans, Uid(9))

	if h.Channels[Uid(3)].Name != "general" {
		t.Error("channel shared with clone")
	}
	if h.Ranks[Uid(4)].Perms.Get(PermKick) != PermUnset {
		t.Error("rank perms shared with clone")
	}
	if h.Ranks[Uid(4)].Channels[Uid(3)].Get(PermSendMessages) != PermUnset {
		t.Error("rank channel overrides shared with clone")
	}
	if len(h.Members[Uid(2)].Ranks) != 1 {
		t.Error("member ranks shared with clone")
	}
	if _, ok := h.Bans[Uid(9)]; !ok {
		t.Error("bans shared with clone")
	}
}

func TestSortedRanks(t *testing.T) {
	h := &Hub{Ranks: map[Uid]*Rank{
		Uid(1): {Id: Uid(1), Priority: 0, Seq: 1},
		Uid(2): {Id: Uid(2), Priority: 10, Seq: 2},
		Uid(3): {Id: Uid(3), Priority: 10, Seq: 3},
	}}
	var got []Uid
	for _, r := range h.SortedRanks() {
		got = append(got, r.Id)
	}
	if diff := cmp.Diff([]Uid{Uid(3), Uid(2), Uid(1)}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestInviteLimits(t *testing.T) {
	now := time.Now()
	inv := &Invite{ExpiresAt: now.Add(time.Minute), MaxUses: 2, Uses: 1}
	if inv.IsExpired(now) || inv.IsExhausted() {
		t.Fatal("fresh invite reported unusable")
	}
	if !inv.IsExpired(now.Add(time.Minute)) {
		t.Error("invite must expire at ExpiresAt")
	}
	inv.Uses = 2
	if !inv.IsExhausted() {
		t.Error("invite must be exhausted at MaxUses")
	}
	if (&Invite{}).IsExpired(now) || (&Invite{Uses: 100}).IsExhausted() {
		t.Error("unlimited invite reported unusable")
	}
}
