// Package test_data holds fixtures shared by adapter tests.
package test_data

import (
	"time"

	adapter "github.com/hubchat/chat/server/db"
	"github.com/hubchat/chat/server/store/types"
)

// TestData is the fixture set used by the adapter test suite.
type TestData struct {
	Hubs     []*adapter.HubRecord
	Channels []types.Uid
	Msgs     []*types.Message
	Invites  []*types.Invite
	Now      time.Time
}

func initHubs(now time.Time) []*adapter.HubRecord {
	return []*adapter.HubRecord{
		{
			Id:        types.ParseUid("3ysxkod5hNM"),
			Owner:     types.ParseUid("9AVDamaNCRY"),
			Name:      "gophers",
			CreatedAt: now.Add(-time.Hour),
			UpdatedAt: now.Add(-time.Hour),
			State:     []byte(`{"name":"gophers"}`),
		},
		{
			Id:        types.ParseUid("0QLrX3WPS2o"),
			Owner:     types.ParseUid("9AVDamaNCRY"),
			Name:      "rustaceans",
			CreatedAt: now.Add(-time.Minute),
			UpdatedAt: now.Add(-time.Minute),
			State:     []byte(`{"name":"rustaceans"}`),
		},
	}
}

func initMessages(hub types.Uid, channels []types.Uid, from types.Uid, now time.Time) []*types.Message {
	var msgs []*types.Message
	for i, body := range []string{"hi", "hello", "how are you", "fine", "bye"} {
		msgs = append(msgs, &types.Message{
			Hub:       hub,
			Channel:   channels[0],
			SeqId:     i + 1,
			From:      from,
			Content:   body,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
	}
	msgs = append(msgs, &types.Message{
		Hub:       hub,
		Channel:   channels[1],
		SeqId:     7,
		From:      from,
		Content:   "other channel",
		CreatedAt: now,
	})
	return msgs
}

func initInvites(hubs []*adapter.HubRecord, now time.Time) []*types.Invite {
	return []*types.Invite{
		{Token: "invite-unlimited", Hub: hubs[0].Id, CreatedBy: hubs[0].Owner, CreatedAt: now.Add(-2 * time.Minute)},
		{Token: "invite-single", Hub: hubs[0].Id, CreatedBy: hubs[0].Owner, CreatedAt: now.Add(-time.Minute),
			MaxUses: 1, ExpiresAt: now.Add(time.Hour)},
		{Token: "invite-other", Hub: hubs[1].Id, CreatedBy: hubs[1].Owner, CreatedAt: now},
	}
}

// InitTestData creates a fresh fixture set.
func InitTestData() *TestData {
	// Millisecond precision is what adapters persist.
	now := types.TimeNow()
	hubs := initHubs(now)
	channels := []types.Uid{types.ParseUid("p1AwVZ2xS9M"), types.ParseUid("RQbvQpG6dVE")}
	return &TestData{
		Hubs:     hubs,
		Channels: channels,
		Msgs:     initMessages(hubs[0].Id, channels, hubs[0].Owner, now),
		Invites:  initInvites(hubs, now),
		Now:      now,
	}
}
