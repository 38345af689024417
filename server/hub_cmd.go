/******************************************************************************
 *
 *  Description :
 *
 *    Hub commands. Every method here runs on the hub goroutine.
 *    Membership, permissions and arguments are checked before anything
 *    is changed.
 *
 *****************************************************************************/

package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hubchat/chat/server/index"
	"github.com/hubchat/chat/server/logs"
	"github.com/hubchat/chat/server/perm"
	"github.com/hubchat/chat/server/store"
	"github.com/hubchat/chat/server/store/types"
)

// checkMember fails with ErrPermissionDenied if the user is not a member.
func (h *Hub) checkMember(asUser types.Uid) error {
	if !h.state.IsMember(asUser) {
		return types.ErrPermissionDenied
	}
	return nil
}

// checkPerm fails with ErrPermissionDenied unless the user holds the hub-wide permission.
func (h *Hub) checkPerm(asUser types.Uid, p types.Permission) error {
	if !perm.For(h.state).Can(asUser, p) {
		return types.ErrPermissionDenied
	}
	return nil
}

func (h *Hub) channel(id types.Uid) (*types.Channel, error) {
	ch := h.state.Channels[id]
	if ch == nil {
		return nil, types.ErrNotFound
	}
	return ch, nil
}

// canSee checks if the subscriber may receive the event.
func (h *Hub) canSee(user types.Uid, evt *HubEvent) bool {
	c := perm.For(h.state)
	switch evt.What {
	case evtMessage, evtTyping, evtTypingStopped:
		return c.CanRead(user, evt.Channel)
	case evtChannel:
		return c.CanIn(user, evt.Channel, types.PermViewChannels)
	case evtHubDeleted:
		return true
	}
	return h.state.IsMember(user)
}

// Channels.

func (h *Hub) createChannel(asUser types.Uid, name, description string) (*types.Channel, error) {
	if err := h.checkPerm(asUser, types.PermManageChannels); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateDescription(description); err != nil {
		return nil, err
	}

	var ch *types.Channel
	err := h.mutate(func(next *types.Hub) error {
		ch = &types.Channel{
			Id:          newUniqueUid(h.reg.newUid, next.Channels),
			Name:        name,
			Description: description,
			Seq:         next.NextSeq(),
			CreatedAt:   h.reg.now(),
		}
		next.Channels[ch.Id] = ch
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.lastSeq[ch.Id] = 0
	h.broadcast(&HubEvent{What: evtChannel, Channel: ch.Id})
	out := *ch
	return &out, nil
}

// updateChannel renames the channel and/or changes its description. Nil arguments are left unchanged.
func (h *Hub) updateChannel(asUser, chId types.Uid, name, description *string) (*types.Channel, error) {
	if err := h.checkPerm(asUser, types.PermManageChannels); err != nil {
		return nil, err
	}
	if _, err := h.channel(chId); err != nil {
		return nil, err
	}
	if name != nil {
		if err := validateName(*name); err != nil {
			return nil, err
		}
	}
	if description != nil {
		if err := validateDescription(*description); err != nil {
			return nil, err
		}
	}

	err := h.mutate(func(next *types.Hub) error {
		ch := next.Channels[chId]
		if name != nil {
			ch.Name = *name
		}
		if description != nil {
			ch.Description = *description
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.broadcast(&HubEvent{What: evtChannel, Channel: chId})
	out := *h.state.Channels[chId]
	return &out, nil
}

func (h *Hub) renameChannel(asUser, chId types.Uid, name string) (*types.Channel, error) {
	return h.updateChannel(asUser, chId, &name, nil)
}

func (h *Hub) setChannelDescription(asUser, chId types.Uid, description string) (*types.Channel, error) {
	return h.updateChannel(asUser, chId, nil, &description)
}

// deleteChannel removes the channel from the snapshot first. The message log is purged
// in the background: a failure there leaves unreachable rows behind but is otherwise harmless.
func (h *Hub) deleteChannel(asUser, chId types.Uid) (struct{}, error) {
	if err := h.checkPerm(asUser, types.PermManageChannels); err != nil {
		return struct{}{}, err
	}
	if _, err := h.channel(chId); err != nil {
		return struct{}{}, err
	}

	err := h.mutate(func(next *types.Hub) error {
		delete(next.Channels, chId)
		for _, r := range next.Ranks {
			delete(r.Channels, chId)
		}
		return nil
	})
	if err != nil {
		return struct{}{}, err
	}

	delete(h.lastSeq, chId)
	hubId := h.id
	h.reg.bgPool.Schedule(func() {
		if err := store.Messages.DeleteAll(hubId, chId); err != nil {
			logs.Warn.Printf("hub[%s] failed to purge log of deleted channel %s: %v", hubId, chId, err)
		}
	})
	index.PurgeChannel(hubId, chId)
	h.broadcast(&HubEvent{What: evtChannelDeleted, Channel: chId})
	return struct{}{}, nil
}

// listChannels returns channels the user can see in creation order.
func (h *Hub) listChannels(asUser types.Uid) ([]*types.Channel, error) {
	if err := h.checkMember(asUser); err != nil {
		return nil, err
	}
	c := perm.For(h.state)
	out := []*types.Channel{}
	for _, ch := range h.state.SortedChannels() {
		if c.CanIn(asUser, ch.Id, types.PermViewChannels) {
			cp := *ch
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Messages.

// sendMessage appends a message to the channel log. The SeqId is taken before the write:
// if the write fails the id is skipped and recorded in the snapshot so that it is not reused
// after a reload.
func (h *Hub) sendMessage(asUser, chId types.Uid, body string) (*types.Message, error) {
	if err := h.checkMember(asUser); err != nil {
		return nil, err
	}
	if _, err := h.channel(chId); err != nil {
		return nil, err
	}
	if !perm.For(h.state).CanIn(asUser, chId, types.PermSendMessages) {
		return nil, types.ErrPermissionDenied
	}
	if m := h.state.Members[asUser]; m != nil && m.Muted && asUser != h.state.Owner {
		return nil, types.ErrPermissionDenied
	}
	if err := validateBody(body); err != nil {
		return nil, err
	}

	seq := h.lastSeq[chId] + 1
	h.lastSeq[chId] = seq

	msg := &types.Message{
		Hub:       h.id,
		Channel:   chId,
		SeqId:     seq,
		From:      asUser,
		Content:   body,
		CreatedAt: h.reg.now(),
	}
	if err := store.Messages.Save(msg); err != nil {
		h.burnSeq(chId, seq)
		return nil, asStorageErr(err)
	}

	statsMessages.Inc()
	index.Index(&index.Entry{
		Hub:       msg.Hub,
		Channel:   msg.Channel,
		SeqId:     msg.SeqId,
		From:      msg.From,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	})
	out := *msg
	h.broadcast(&HubEvent{What: evtMessage, Channel: chId, User: asUser, Msg: msg})
	return &out, nil
}

// burnSeq records a SeqId that was taken but not stored.
func (h *Hub) burnSeq(chId types.Uid, seq int) {
	err := h.mutate(func(next *types.Hub) error {
		if ch := next.Channels[chId]; ch != nil && ch.BurnedSeq < seq {
			ch.BurnedSeq = seq
		}
		return nil
	})
	if err != nil {
		logs.Warn.Printf("hub[%s] failed to record burned seq %d in %s: %v", h.id, seq, chId, err)
	}
}

// getMessages returns up to limit messages with SeqId at or below before (0: latest), newest first.
func (h *Hub) getMessages(asUser, chId types.Uid, limit, before int) ([]types.Message, error) {
	if err := h.checkMember(asUser); err != nil {
		return nil, err
	}
	if _, err := h.channel(chId); err != nil {
		return nil, err
	}
	if !perm.For(h.state).CanRead(asUser, chId) {
		return nil, types.ErrPermissionDenied
	}
	if limit < 0 || before < 0 {
		return nil, types.ErrMalformed
	}
	if limit == 0 {
		limit = defaultMessageLimit
	}

	msgs, err := store.Messages.GetAll(h.id, chId, &types.BrowseOpt{Before: before, Limit: limit})
	if err != nil {
		return nil, asStorageErr(err)
	}
	if msgs == nil {
		msgs = []types.Message{}
	}
	return msgs, nil
}

// Hub.

func (h *Hub) metadata(asUser types.Uid) (*MsgHubMeta, error) {
	if err := h.checkMember(asUser); err != nil {
		return nil, err
	}
	count := len(h.state.Members)
	if _, ok := h.state.Members[h.state.Owner]; !ok {
		count++
	}
	return &MsgHubMeta{
		Id:          h.id,
		Name:        h.state.Name,
		Owner:       h.state.Owner,
		CreatedAt:   h.state.CreatedAt,
		MemberCount: count,
	}, nil
}

func (h *Hub) renameHub(asUser types.Uid, name string) (*MsgHubMeta, error) {
	if err := h.checkPerm(asUser, types.PermAdministrate); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	err := h.mutate(func(next *types.Hub) error {
		next.Name = name
		return nil
	})
	if err != nil {
		return nil, err
	}
	h.broadcast(&HubEvent{What: evtHub})
	return h.metadata(asUser)
}

// destroy deletes the hub with all channels, messages and invites. Owner only.
func (h *Hub) destroy(asUser types.Uid) (struct{}, error) {
	if asUser != h.state.Owner {
		return struct{}{}, types.ErrPermissionDenied
	}
	if err := store.Hubs.Delete(h.id); err != nil {
		return struct{}{}, asStorageErr(err)
	}

	h.deleted = true
	index.PurgeHub(h.id)
	h.broadcast(&HubEvent{What: evtHubDeleted})
	logs.Info.Printf("hub[%s] destroyed by %s", h.id, asUser)
	return struct{}{}, nil
}

// search finds messages in channels the user can read.
func (h *Hub) search(asUser types.Uid, query string, limit int) ([]index.Entry, error) {
	if err := h.checkMember(asUser); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" || limit < 0 {
		return nil, types.ErrMalformed
	}

	c := perm.For(h.state)
	var channels []types.Uid
	for id := range h.state.Channels {
		if c.CanRead(asUser, id) {
			channels = append(channels, id)
		}
	}
	if len(channels) == 0 {
		return []index.Entry{}, nil
	}

	found, err := index.Search(&index.Query{Hub: h.id, Channels: channels, Text: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []index.Entry{}
	}
	return found, nil
}

// subscribe opens a live feed for the member.
func (h *Hub) subscribe(asUser types.Uid) (*liveSub, error) {
	if err := h.checkMember(asUser); err != nil {
		return nil, err
	}
	return h.addSub(asUser), nil
}

// Ranks.

// validateRankPerms checks that channel overrides name existing channels and channel-scoped permissions only.
func (h *Hub) validateRankPerms(perms types.PermSet, channels map[types.Uid]types.PermSet) error {
	for p := range perms {
		if p.String() == "" {
			return fmt.Errorf("%w: unknown permission", types.ErrMalformed)
		}
	}
	for chId, ps := range channels {
		if _, ok := h.state.Channels[chId]; !ok {
			return fmt.Errorf("%w: unknown channel %s", types.ErrMalformed, chId)
		}
		for p := range ps {
			if !p.IsChannelScoped() {
				return fmt.Errorf("%w: %s cannot be set per channel", types.ErrMalformed, p)
			}
		}
	}
	return nil
}

func (h *Hub) listRanks(asUser types.Uid) ([]*types.Rank, error) {
	if err := h.checkMember(asUser); err != nil {
		return nil, err
	}
	out := []*types.Rank{}
	for _, r := range h.state.SortedRanks() {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (h *Hub) memberRanks(asUser, user types.Uid) (types.UidSlice, error) {
	if err := h.checkMember(asUser); err != nil {
		return nil, err
	}
	if !h.state.IsMember(user) {
		return nil, types.ErrNotFound
	}
	return append(types.UidSlice{}, h.state.MemberRanks(user)...), nil
}

func (h *Hub) createRank(asUser types.Uid, req *MsgRank) (*types.Rank, error) {
	if err := h.checkPerm(asUser, types.PermManageRanks); err != nil {
		return nil, err
	}
	if req.Name == nil {
		return nil, types.ErrInvalidName
	}
	if err := validateName(*req.Name); err != nil {
		return nil, err
	}
	if err := h.validateRankPerms(req.Perms, req.Channels); err != nil {
		return nil, err
	}

	var rank *types.Rank
	err := h.mutate(func(next *types.Hub) error {
		rank = &types.Rank{
			Id:        newUniqueUid(h.reg.newUid, next.Ranks),
			Name:      *req.Name,
			Seq:       next.NextSeq(),
			CreatedAt: h.reg.now(),
			Perms:     types.PermSet{},
		}
		if req.Priority != nil {
			rank.Priority = *req.Priority
		}
		rank.Perms.Merge(req.Perms)
		for chId, ps := range req.Channels {
			if rank.Channels == nil {
				rank.Channels = make(map[types.Uid]types.PermSet)
			}
			set := types.PermSet{}
			set.Merge(ps)
			if len(set) > 0 {
				rank.Channels[chId] = set
			}
		}
		next.Ranks[rank.Id] = rank
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.broadcast(&HubEvent{What: evtRank, Rank: rank.Id})
	return rank.Clone(), nil
}

// editRank changes the rank. Permission settings are merged, "unset" removes a setting.
func (h *Hub) editRank(asUser, rankId types.Uid, req *MsgRank) (*types.Rank, error) {
	if err := h.checkPerm(asUser, types.PermManageRanks); err != nil {
		return nil, err
	}
	if _, ok := h.state.Ranks[rankId]; !ok {
		return nil, types.ErrNotFound
	}
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return nil, err
		}
	}
	if err := h.validateRankPerms(req.Perms, req.Channels); err != nil {
		return nil, err
	}

	err := h.mutate(func(next *types.Hub) error {
		rank := next.Ranks[rankId]
		if req.Name != nil {
			rank.Name = *req.Name
		}
		if req.Priority != nil {
			rank.Priority = *req.Priority
		}
		if rank.Perms == nil {
			rank.Perms = types.PermSet{}
		}
		rank.Perms.Merge(req.Perms)
		for chId, ps := range req.Channels {
			if rank.Channels == nil {
				rank.Channels = make(map[types.Uid]types.PermSet)
			}
			set := rank.Channels[chId]
			if set == nil {
				set = types.PermSet{}
			}
			set.Merge(ps)
			if len(set) == 0 {
				delete(rank.Channels, chId)
			} else {
				rank.Channels[chId] = set
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.broadcast(&HubEvent{What: evtRank, Rank: rankId})
	return h.state.Ranks[rankId].Clone(), nil
}

// deleteRank removes the rank and every assignment of it. The default rank cannot be deleted.
func (h *Hub) deleteRank(asUser, rankId types.Uid) (struct{}, error) {
	if err := h.checkPerm(asUser, types.PermManageRanks); err != nil {
		return struct{}{}, err
	}
	if _, ok := h.state.Ranks[rankId]; !ok {
		return struct{}{}, types.ErrNotFound
	}
	if rankId == h.state.DefaultRank {
		return struct{}{}, fmt.Errorf("%w: the default rank cannot be deleted", types.ErrMalformed)
	}

	err := h.mutate(func(next *types.Hub) error {
		delete(next.Ranks, rankId)
		for _, m := range next.Members {
			m.Ranks.Rem(rankId)
		}
		return nil
	})
	if err != nil {
		return struct{}{}, err
	}

	h.broadcast(&HubEvent{What: evtRankDeleted, Rank: rankId})
	return struct{}{}, nil
}

// assignRank gives the rank to a member. Assigning a rank the member already has is a no-op.
func (h *Hub) assignRank(asUser, user, rankId types.Uid) (types.UidSlice, error) {
	return h.changeMemberRank(asUser, user, rankId, true)
}

// revokeRank takes the rank from a member. Revoking a rank the member does not have is a no-op.
func (h *Hub) revokeRank(asUser, user, rankId types.Uid) (types.UidSlice, error) {
	return h.changeMemberRank(asUser, user, rankId, false)
}

func (h *Hub) changeMemberRank(asUser, user, rankId types.Uid, assign bool) (types.UidSlice, error) {
	if err := h.checkPerm(asUser, types.PermManageRanks); err != nil {
		return nil, err
	}
	if _, ok := h.state.Members[user]; !ok {
		return nil, types.ErrNotFound
	}
	if _, ok := h.state.Ranks[rankId]; !ok {
		return nil, types.ErrNotFound
	}

	has := h.state.Members[user].Ranks.Contains(rankId)
	if has == assign {
		return append(types.UidSlice{}, h.state.MemberRanks(user)...), nil
	}

	err := h.mutate(func(next *types.Hub) error {
		m := next.Members[user]
		if assign {
			m.Ranks.Add(rankId)
		} else {
			m.Ranks.Rem(rankId)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.broadcast(&HubEvent{What: evtMemberUpdated, User: user, Rank: rankId})
	return append(types.UidSlice{}, h.state.MemberRanks(user)...), nil
}

// Members.

// addMember adds the user with the default rank. Returns false if the user is already a member.
// Banned users are refused.
func (h *Hub) addMember(user types.Uid) (bool, error) {
	if user.IsZero() {
		return false, types.ErrMalformed
	}
	if _, banned := h.state.Bans[user]; banned {
		return false, types.ErrPermissionDenied
	}
	if h.state.IsMember(user) {
		return false, nil
	}

	err := h.mutate(func(next *types.Hub) error {
		next.Members[user] = &types.Member{
			Ranks:    types.UidSlice{next.DefaultRank},
			JoinedAt: h.reg.now(),
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	h.broadcast(&HubEvent{What: evtMemberJoined, User: user})
	return true, nil
}

// removeMember drops the membership record. Used to undo addMember when the invite could not be counted.
func (h *Hub) removeMember(user types.Uid) (struct{}, error) {
	if user == h.state.Owner {
		return struct{}{}, types.ErrPermissionDenied
	}
	if _, ok := h.state.Members[user]; !ok {
		return struct{}{}, nil
	}
	if err := h.mutate(func(next *types.Hub) error {
		delete(next.Members, user)
		return nil
	}); err != nil {
		return struct{}{}, err
	}
	h.dropUserSubs(user)
	h.broadcast(&HubEvent{What: evtMemberLeft, User: user})
	return struct{}{}, nil
}

// moderate checks the permission and that the target is not the owner.
func (h *Hub) moderate(asUser, user types.Uid, p types.Permission) error {
	if err := h.checkPerm(asUser, p); err != nil {
		return err
	}
	if user == h.state.Owner {
		return types.ErrPermissionDenied
	}
	return nil
}

func (h *Hub) kickMember(asUser, user types.Uid) (struct{}, error) {
	if err := h.moderate(asUser, user, types.PermKick); err != nil {
		return struct{}{}, err
	}
	if _, ok := h.state.Members[user]; !ok {
		return struct{}{}, types.ErrNotFound
	}
	return h.removeMember(user)
}

// leaveHub removes the requester from the hub. The owner cannot leave.
func (h *Hub) leaveHub(asUser types.Uid) (struct{}, error) {
	if err := h.checkMember(asUser); err != nil {
		return struct{}{}, err
	}
	if asUser == h.state.Owner {
		return struct{}{}, types.ErrPermissionDenied
	}
	return h.removeMember(asUser)
}

// banMember removes the user, if a member, and prevents rejoining. Non-members can be banned too.
func (h *Hub) banMember(asUser, user types.Uid) (struct{}, error) {
	if err := h.moderate(asUser, user, types.PermBan); err != nil {
		return struct{}{}, err
	}
	if user.IsZero() {
		return struct{}{}, types.ErrMalformed
	}
	if _, banned := h.state.Bans[user]; banned {
		return struct{}{}, nil
	}
	_, wasMember := h.state.Members[user]

	err := h.mutate(func(next *types.Hub) error {
		delete(next.Members, user)
		if next.Bans == nil {
			next.Bans = make(map[types.Uid]time.Time)
		}
		next.Bans[user] = h.reg.now()
		return nil
	})
	if err != nil {
		return struct{}{}, err
	}

	if wasMember {
		h.dropUserSubs(user)
		h.broadcast(&HubEvent{What: evtMemberLeft, User: user})
	}
	return struct{}{}, nil
}

func (h *Hub) unbanMember(asUser, user types.Uid) (struct{}, error) {
	if err := h.checkPerm(asUser, types.PermBan); err != nil {
		return struct{}{}, err
	}
	if _, banned := h.state.Bans[user]; !banned {
		return struct{}{}, types.ErrNotFound
	}
	err := h.mutate(func(next *types.Hub) error {
		delete(next.Bans, user)
		return nil
	})
	return struct{}{}, err
}

// setMuted mutes or unmutes a member. Muted members cannot send messages.
func (h *Hub) setMuted(asUser, user types.Uid, muted bool) (struct{}, error) {
	if err := h.moderate(asUser, user, types.PermMute); err != nil {
		return struct{}{}, err
	}
	m, ok := h.state.Members[user]
	if !ok {
		return struct{}{}, types.ErrNotFound
	}
	if m.Muted == muted {
		return struct{}{}, nil
	}
	err := h.mutate(func(next *types.Hub) error {
		next.Members[user].Muted = muted
		return nil
	})
	if err != nil {
		return struct{}{}, err
	}
	h.broadcast(&HubEvent{What: evtMemberUpdated, User: user})
	return struct{}{}, nil
}

// memberInfo builds the public view of a member or of a banned user. Returns nil for strangers.
func (h *Hub) memberInfo(user types.Uid) *MsgMember {
	bannedAt, banned := h.state.Bans[user]
	m := h.state.Members[user]
	if m == nil && !banned {
		return nil
	}
	info := &MsgMember{
		User:     user,
		Banned:   banned,
		BannedAt: bannedAt,
	}
	if m != nil {
		info.Nickname = m.Nickname
		info.Ranks = append(types.UidSlice{}, m.Ranks...)
		info.JoinedAt = m.JoinedAt
		info.Owner = user == h.state.Owner
		info.Muted = m.Muted
	}
	return info
}

// getMember reports membership, mute and ban state of the user. Any member may ask.
func (h *Hub) getMember(asUser, user types.Uid) (*MsgMember, error) {
	if err := h.checkMember(asUser); err != nil {
		return nil, err
	}
	info := h.memberInfo(user)
	if info == nil {
		return nil, types.ErrNotFound
	}
	return info, nil
}

// listMembers returns members in the order they joined followed by banned users in the order
// they were banned.
func (h *Hub) listMembers(asUser types.Uid) ([]*MsgMember, error) {
	if err := h.checkMember(asUser); err != nil {
		return nil, err
	}

	var members, banned []*MsgMember
	for uid := range h.state.Members {
		members = append(members, h.memberInfo(uid))
	}
	for uid := range h.state.Bans {
		if _, isMember := h.state.Members[uid]; !isMember {
			banned = append(banned, h.memberInfo(uid))
		}
	}
	sort.Slice(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.User < b.User
	})
	sort.Slice(banned, func(i, j int) bool {
		a, b := banned[i], banned[j]
		if !a.BannedAt.Equal(b.BannedAt) {
			return a.BannedAt.Before(b.BannedAt)
		}
		return a.User < b.User
	})
	return append(members, banned...), nil
}

// setNickname changes the caller's own display name in the hub.
func (h *Hub) setNickname(asUser types.Uid, nickname string) (*MsgMember, error) {
	if err := h.checkMember(asUser); err != nil {
		return nil, err
	}
	if nickname != "" {
		if err := validateName(nickname); err != nil {
			return nil, err
		}
	}
	if h.state.Members[asUser].Nickname != nickname {
		err := h.mutate(func(next *types.Hub) error {
			next.Members[asUser].Nickname = nickname
			return nil
		})
		if err != nil {
			return nil, err
		}
		h.broadcast(&HubEvent{What: evtMemberUpdated, User: asUser})
	}
	return h.memberInfo(asUser), nil
}

// typing tells the channel's readers that the user started or stopped typing.
// Nothing is persisted. Only users who may post in the channel can notify.
func (h *Hub) typing(asUser, chId types.Uid, started bool) (struct{}, error) {
	if err := h.checkMember(asUser); err != nil {
		return struct{}{}, err
	}
	if _, err := h.channel(chId); err != nil {
		return struct{}{}, err
	}
	if !perm.For(h.state).CanIn(asUser, chId, types.PermSendMessages) {
		return struct{}{}, types.ErrPermissionDenied
	}
	if m := h.state.Members[asUser]; m.Muted && asUser != h.state.Owner {
		return struct{}{}, types.ErrPermissionDenied
	}

	what := evtTyping
	if !started {
		what = evtTypingStopped
	}
	h.broadcast(&HubEvent{What: what, Channel: chId, User: asUser})
	return struct{}{}, nil
}
