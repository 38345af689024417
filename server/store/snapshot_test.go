package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hubchat/chat/server/store/types"
)

func sampleHub() *types.Hub {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &types.Hub{
		Id:        types.Uid(101),
		Name:      "gophers",
		Owner:     types.Uid(1),
		CreatedAt: now,
		UpdatedAt: now,
		Channels: map[types.Uid]*types.Channel{
			types.Uid(201): {Id: types.Uid(201), Name: "general", Description: "talk", Seq: 2, CreatedAt: now},
		},
		Ranks: map[types.Uid]*types.Rank{
			types.Uid(301): {Id: types.Uid(301), Name: "everyone", Seq: 1, CreatedAt: now,
				Perms: types.PermSet{types.PermViewChannels: types.PermAllow, types.PermSendMessages: types.PermAllow},
				Channels: map[types.Uid]types.PermSet{
					types.Uid(201): {types.PermSendMessages: types.PermDeny},
				}},
		},
		Members: map[types.Uid]*types.Member{
			types.Uid(1): {Ranks: types.UidSlice{types.Uid(301)}, JoinedAt: now},
			types.Uid(2): {Ranks: types.UidSlice{types.Uid(301)}, JoinedAt: now, Muted: true},
		},
		Bans:        map[types.Uid]time.Time{types.Uid(3): now},
		DefaultRank: types.Uid(301),
		LastSeq:     2,
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	hub := sampleHub()
	data, err := EncodeHub(hub)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeHub(hub.Id, data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(hub, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeHubCorrupt(t *testing.T) {
	good, _ := EncodeHub(sampleHub())

	noDefault := sampleHub()
	noDefault.DefaultRank = types.Uid(999)
	noDefaultData, _ := EncodeHub(noDefault)

	cases := map[string]struct {
		id   types.Uid
		data []byte
	}{
		"garbage":         {types.Uid(101), []byte("{not json")},
		"truncated":       {types.Uid(101), good[:len(good)/2]},
		"wrong id":        {types.Uid(102), good},
		"missing default": {types.Uid(101), noDefaultData},
		"empty object":    {types.Uid(101), []byte("{}")},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeHub(c.id, c.data)
			if !errors.Is(err, types.ErrCorruptState) {
				t.Errorf("expected ErrCorruptState, got %v", err)
			}
		})
	}
}

func TestStorageErr(t *testing.T) {
	if err := storageErr(types.ErrDuplicate); err != types.ErrDuplicate {
		t.Errorf("typed error altered: %v", err)
	}
	err := storageErr(errors.New("disk full"))
	if !errors.Is(err, types.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
	if storageErr(nil) != nil {
		t.Error("nil must stay nil")
	}
}
