/******************************************************************************
 *
 *  Description :
 *
 *    Hub initialization routines.
 *
 *****************************************************************************/

package main

import (
	"time"

	"github.com/hubchat/chat/server/store/types"
)

const (
	// Name of the rank every member receives on joining.
	defaultRankName = "everyone"
	// Name of the channel every new hub starts with.
	defaultChannelName = "chat"
)

// initHub builds the state of a new hub: the owner as the only member, an "everyone"
// default rank and a "chat" channel which the default rank can see, read and write.
func initHub(newUid func() types.Uid, now time.Time, owner types.Uid, name string) *types.Hub {
	hub := &types.Hub{
		Id:        newUid(),
		Name:      name,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
		Channels:  make(map[types.Uid]*types.Channel),
		Ranks:     make(map[types.Uid]*types.Rank),
		Members:   make(map[types.Uid]*types.Member),
	}

	chat := &types.Channel{
		Id:        newUid(),
		Name:      defaultChannelName,
		Seq:       hub.NextSeq(),
		CreatedAt: now,
	}
	hub.Channels[chat.Id] = chat

	everyone := &types.Rank{
		Id:        newUid(),
		Name:      defaultRankName,
		Seq:       hub.NextSeq(),
		CreatedAt: now,
		Perms:     types.PermSet{},
		Channels: map[types.Uid]types.PermSet{
			chat.Id: {
				types.PermViewChannels: types.PermAllow,
				types.PermReadMessages: types.PermAllow,
				types.PermSendMessages: types.PermAllow,
			},
		},
	}
	hub.Ranks[everyone.Id] = everyone
	hub.DefaultRank = everyone.Id

	hub.Members[owner] = &types.Member{
		Ranks:    types.UidSlice{everyone.Id},
		JoinedAt: now,
	}

	return hub
}

// newUniqueUid returns an id not yet used as a key in the map.
func newUniqueUid[V any](newUid func() types.Uid, taken map[types.Uid]V) types.Uid {
	for {
		id := newUid()
		if _, dup := taken[id]; !dup && !id.IsZero() {
			return id
		}
	}
}
