/******************************************************************************
 *
 *  Description :
 *
 *    Registry entry points for hub operations. Each call is routed to the
 *    hub goroutine and waits for the result.
 *
 *****************************************************************************/

package main

import (
	"context"
	"sync"

	"github.com/hubchat/chat/server/index"
	"github.com/hubchat/chat/server/store/types"
)

// Hub.

// HubMetadata returns the hub's name, owner, creation time and member count.
func (r *Registry) HubMetadata(ctx context.Context, hub, asUser types.Uid) (*MsgHubMeta, error) {
	return hubExec(ctx, r, hub, "get_metadata", func(h *Hub) (*MsgHubMeta, error) {
		return h.metadata(asUser)
	})
}

func (r *Registry) RenameHub(ctx context.Context, hub, asUser types.Uid, name string) (*MsgHubMeta, error) {
	return hubExec(ctx, r, hub, "rename_hub", func(h *Hub) (*MsgHubMeta, error) {
		return h.renameHub(asUser, name)
	})
}

// DestroyHub deletes the hub and stops its goroutine. Owner only.
func (r *Registry) DestroyHub(ctx context.Context, hub, asUser types.Uid) error {
	_, err := hubExec(ctx, r, hub, "destroy_hub", func(h *Hub) (struct{}, error) {
		return h.destroy(asUser)
	})
	return err
}

func (r *Registry) Search(ctx context.Context, hub, asUser types.Uid, query string, limit int) ([]index.Entry, error) {
	return hubExec(ctx, r, hub, "search", func(h *Hub) ([]index.Entry, error) {
		return h.search(asUser, query, limit)
	})
}

// Subscribe opens a live feed of the hub's events. The returned channel is closed when
// the subscription ends. The cancel function must be called when the caller is done.
func (r *Registry) Subscribe(ctx context.Context, hub, asUser types.Uid) (<-chan *HubEvent, func(), error) {
	// The command may still run after the caller gave up waiting. Whatever it adds then
	// must not outlive the request.
	var mu sync.Mutex
	var abandoned bool
	var h *Hub
	var added *liveSub

	sub, err := hubExec(ctx, r, hub, "subscribe", func(hh *Hub) (*liveSub, error) {
		mu.Lock()
		defer mu.Unlock()
		if abandoned {
			return nil, context.Canceled
		}
		sub, err := hh.subscribe(asUser)
		if err == nil {
			h, added = hh, sub
		}
		return sub, err
	})
	if err != nil {
		mu.Lock()
		abandoned = true
		leaked, lh := added, h
		mu.Unlock()
		if leaked != nil {
			lh.unsubscribe(leaked)
		}
		return nil, nil, err
	}
	return sub.events, func() { h.unsubscribe(sub) }, nil
}

// Channels.

func (r *Registry) CreateChannel(ctx context.Context, hub, asUser types.Uid, name, description string) (*types.Channel, error) {
	return hubExec(ctx, r, hub, "create_channel", func(h *Hub) (*types.Channel, error) {
		return h.createChannel(asUser, name, description)
	})
}

// UpdateChannel renames the channel and/or changes its description.
func (r *Registry) UpdateChannel(ctx context.Context, hub, asUser, channel types.Uid, name, description *string) (*types.Channel, error) {
	return hubExec(ctx, r, hub, "update_channel", func(h *Hub) (*types.Channel, error) {
		return h.updateChannel(asUser, channel, name, description)
	})
}

func (r *Registry) RenameChannel(ctx context.Context, hub, asUser, channel types.Uid, name string) (*types.Channel, error) {
	return hubExec(ctx, r, hub, "rename_channel", func(h *Hub) (*types.Channel, error) {
		return h.renameChannel(asUser, channel, name)
	})
}

func (r *Registry) DeleteChannel(ctx context.Context, hub, asUser, channel types.Uid) error {
	_, err := hubExec(ctx, r, hub, "delete_channel", func(h *Hub) (struct{}, error) {
		return h.deleteChannel(asUser, channel)
	})
	return err
}

func (r *Registry) ListChannels(ctx context.Context, hub, asUser types.Uid) ([]*types.Channel, error) {
	return hubExec(ctx, r, hub, "list_channels", func(h *Hub) ([]*types.Channel, error) {
		return h.listChannels(asUser)
	})
}

// Messages.

func (r *Registry) SendMessage(ctx context.Context, hub, asUser, channel types.Uid, body string) (*types.Message, error) {
	return hubExec(ctx, r, hub, "send_message", func(h *Hub) (*types.Message, error) {
		return h.sendMessage(asUser, channel, body)
	})
}

// GetMessages returns up to limit newest messages with SeqId at or below before, newest first.
// Zero before means the latest messages.
func (r *Registry) GetMessages(ctx context.Context, hub, asUser, channel types.Uid, limit, before int) ([]types.Message, error) {
	return hubExec(ctx, r, hub, "get_messages", func(h *Hub) ([]types.Message, error) {
		return h.getMessages(asUser, channel, limit, before)
	})
}

// Ranks.

func (r *Registry) ListRanks(ctx context.Context, hub, asUser types.Uid) ([]*types.Rank, error) {
	return hubExec(ctx, r, hub, "list_ranks", func(h *Hub) ([]*types.Rank, error) {
		return h.listRanks(asUser)
	})
}

func (r *Registry) MemberRanks(ctx context.Context, hub, asUser, user types.Uid) (types.UidSlice, error) {
	return hubExec(ctx, r, hub, "get_member_ranks", func(h *Hub) (types.UidSlice, error) {
		return h.memberRanks(asUser, user)
	})
}

func (r *Registry) CreateRank(ctx context.Context, hub, asUser types.Uid, req *MsgRank) (*types.Rank, error) {
	return hubExec(ctx, r, hub, "create_rank", func(h *Hub) (*types.Rank, error) {
		return h.createRank(asUser, req)
	})
}

func (r *Registry) EditRank(ctx context.Context, hub, asUser, rank types.Uid, req *MsgRank) (*types.Rank, error) {
	return hubExec(ctx, r, hub, "edit_rank", func(h *Hub) (*types.Rank, error) {
		return h.editRank(asUser, rank, req)
	})
}

func (r *Registry) DeleteRank(ctx context.Context, hub, asUser, rank types.Uid) error {
	_, err := hubExec(ctx, r, hub, "delete_rank", func(h *Hub) (struct{}, error) {
		return h.deleteRank(asUser, rank)
	})
	return err
}

// AssignRank gives the rank to the member and returns the member's ranks.
func (r *Registry) AssignRank(ctx context.Context, hub, asUser, user, rank types.Uid) (types.UidSlice, error) {
	return hubExec(ctx, r, hub, "assign_rank", func(h *Hub) (types.UidSlice, error) {
		return h.assignRank(asUser, user, rank)
	})
}

// RevokeRank takes the rank from the member and returns the member's remaining ranks.
func (r *Registry) RevokeRank(ctx context.Context, hub, asUser, user, rank types.Uid) (types.UidSlice, error) {
	return hubExec(ctx, r, hub, "revoke_rank", func(h *Hub) (types.UidSlice, error) {
		return h.revokeRank(asUser, user, rank)
	})
}

// Members.

func (r *Registry) KickMember(ctx context.Context, hub, asUser, user types.Uid) error {
	_, err := hubExec(ctx, r, hub, "kick_member", func(h *Hub) (struct{}, error) {
		return h.kickMember(asUser, user)
	})
	return err
}

func (r *Registry) LeaveHub(ctx context.Context, hub, asUser types.Uid) error {
	_, err := hubExec(ctx, r, hub, "leave_hub", func(h *Hub) (struct{}, error) {
		return h.leaveHub(asUser)
	})
	return err
}

func (r *Registry) BanMember(ctx context.Context, hub, asUser, user types.Uid) error {
	_, err := hubExec(ctx, r, hub, "ban_member", func(h *Hub) (struct{}, error) {
		return h.banMember(asUser, user)
	})
	return err
}

func (r *Registry) UnbanMember(ctx context.Context, hub, asUser, user types.Uid) error {
	_, err := hubExec(ctx, r, hub, "unban_member", func(h *Hub) (struct{}, error) {
		return h.unbanMember(asUser, user)
	})
	return err
}

// MuteMember mutes or unmutes the member.
func (r *Registry) MuteMember(ctx context.Context, hub, asUser, user types.Uid, muted bool) error {
	op := "mute_member"
	if !muted {
		op = "unmute_member"
	}
	_, err := hubExec(ctx, r, hub, op, func(h *Hub) (struct{}, error) {
		return h.setMuted(asUser, user, muted)
	})
	return err
}

// GetMember reports whether the user is a member, muted or banned.
func (r *Registry) GetMember(ctx context.Context, hub, asUser, user types.Uid) (*MsgMember, error) {
	return hubExec(ctx, r, hub, "get_member", func(h *Hub) (*MsgMember, error) {
		return h.getMember(asUser, user)
	})
}

// ListMembers returns all members followed by banned users.
func (r *Registry) ListMembers(ctx context.Context, hub, asUser types.Uid) ([]*MsgMember, error) {
	return hubExec(ctx, r, hub, "list_members", func(h *Hub) ([]*MsgMember, error) {
		return h.listMembers(asUser)
	})
}

// SetNickname changes the caller's nickname in the hub. Empty nickname clears it.
func (r *Registry) SetNickname(ctx context.Context, hub, asUser types.Uid, nickname string) (*MsgMember, error) {
	return hubExec(ctx, r, hub, "set_nickname", func(h *Hub) (*MsgMember, error) {
		return h.setNickname(asUser, nickname)
	})
}

// Typing notifies live feed subscribers who can read the channel that the user started
// or stopped typing.
func (r *Registry) Typing(ctx context.Context, hub, asUser, channel types.Uid, started bool) error {
	op := "start_typing"
	if !started {
		op = "stop_typing"
	}
	_, err := hubExec(ctx, r, hub, op, func(h *Hub) (struct{}, error) {
		return h.typing(asUser, channel, started)
	})
	return err
}
