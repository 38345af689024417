/******************************************************************************
 *
 *  Description :
 *
 *    Invites: creation and listing run on the hub goroutine, redemption
 *    is serialized per token and delegates membership to the hub.
 *
 *****************************************************************************/

package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hubchat/chat/server/logs"
	"github.com/hubchat/chat/server/store"
	"github.com/hubchat/chat/server/store/types"
)

// newInviteToken returns a random 32 character token.
func newInviteToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// createInvite stores a new invite. Zero maxUses means unlimited, zero ttl means no expiration.
func (h *Hub) createInvite(asUser types.Uid, maxUses int, ttl time.Duration) (*types.Invite, error) {
	if err := h.checkPerm(asUser, types.PermInvite); err != nil {
		return nil, err
	}
	if maxUses < 0 || ttl < 0 {
		return nil, types.ErrMalformed
	}

	now := h.reg.now()
	inv := &types.Invite{
		Token:     newInviteToken(),
		Hub:       h.id,
		CreatedBy: asUser,
		CreatedAt: now,
		MaxUses:   maxUses,
	}
	if ttl > 0 {
		inv.ExpiresAt = now.Add(ttl).Round(time.Millisecond)
	}
	if err := store.Invites.Create(inv); err != nil {
		return nil, asStorageErr(err)
	}
	return inv, nil
}

func (h *Hub) listInvites(asUser types.Uid) ([]types.Invite, error) {
	if err := h.checkPerm(asUser, types.PermInvite); err != nil {
		return nil, err
	}
	invites, err := store.Invites.ForHub(h.id)
	if err != nil {
		return nil, asStorageErr(err)
	}
	if invites == nil {
		invites = []types.Invite{}
	}
	return invites, nil
}

// revokeInvite deletes the invite. Allowed to its creator while still a member, and to holders of Invite.
func (h *Hub) revokeInvite(asUser types.Uid, inv *types.Invite) (struct{}, error) {
	if !(inv.CreatedBy == asUser && h.state.IsMember(asUser)) {
		if err := h.checkPerm(asUser, types.PermInvite); err != nil {
			return struct{}{}, err
		}
	}
	if err := store.Invites.Delete(inv.Token); err != nil {
		return struct{}{}, asStorageErr(err)
	}
	return struct{}{}, nil
}

// CreateInvite issues an invite to the hub.
func (r *Registry) CreateInvite(ctx context.Context, hub, asUser types.Uid, maxUses int, ttl time.Duration) (*types.Invite, error) {
	return hubExec(ctx, r, hub, "create_invite", func(h *Hub) (*types.Invite, error) {
		return h.createInvite(asUser, maxUses, ttl)
	})
}

// ListInvites returns the invites of the hub.
func (r *Registry) ListInvites(ctx context.Context, hub, asUser types.Uid) ([]types.Invite, error) {
	return hubExec(ctx, r, hub, "list_invites", func(h *Hub) ([]types.Invite, error) {
		return h.listInvites(asUser)
	})
}

// RevokeInvite deletes the invite.
func (r *Registry) RevokeInvite(ctx context.Context, token string, asUser types.Uid) error {
	lock := r.inviteLocks.For(token)
	if err := lock.LockContext(ctx); err != nil {
		return err
	}
	defer lock.Unlock()

	inv, err := store.Invites.Get(token)
	if err != nil {
		return asStorageErr(err)
	}
	_, err = hubExec(ctx, r, inv.Hub, "revoke_invite", func(h *Hub) (struct{}, error) {
		return h.revokeInvite(asUser, inv)
	})
	return err
}

// RedeemInvite makes the user a member of the invite's hub and counts one use.
// Redemptions of the same token never overlap, so uses are not double counted.
// Joining a hub the user is already a member of does not consume a use.
func (r *Registry) RedeemInvite(ctx context.Context, token string, user types.Uid) (*MsgRedeemed, error) {
	res, err := r.redeem(ctx, token, user)
	statsRedemptions.WithLabelValues(errorCode(err)).Inc()
	return res, err
}

func (r *Registry) redeem(ctx context.Context, token string, user types.Uid) (*MsgRedeemed, error) {
	if token == "" {
		return nil, types.ErrNotFound
	}

	lock := r.inviteLocks.For(token)
	if err := lock.LockContext(ctx); err != nil {
		return nil, err
	}
	defer lock.Unlock()

	// Once the lock is taken the redemption runs to completion even if the caller gives up,
	// otherwise a membership could be granted without counting the use.
	ctx = context.WithoutCancel(ctx)

	inv, err := store.Invites.Get(token)
	if err != nil {
		return nil, asStorageErr(err)
	}
	if inv.IsExpired(r.now()) {
		return nil, types.ErrInviteExpired
	}
	if inv.IsExhausted() {
		return nil, types.ErrInviteExhausted
	}

	added, err := hubExec(ctx, r, inv.Hub, "add_member", func(h *Hub) (bool, error) {
		return h.addMember(user)
	})
	if err != nil {
		return nil, err
	}
	if !added {
		return &MsgRedeemed{Hub: inv.Hub, Joined: false}, nil
	}

	if err := store.Invites.Use(token); err != nil {
		// Undo the membership: the invite was not counted.
		if _, rerr := hubExec(ctx, r, inv.Hub, "remove_member", func(h *Hub) (struct{}, error) {
			return h.removeMember(user)
		}); rerr != nil {
			logs.Err.Printf("invite %s: failed to roll back membership of %s in hub[%s]: %v", token, user, inv.Hub, rerr)
		}
		if errors.Is(err, types.ErrInviteExhausted) || errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		return nil, asStorageErr(err)
	}

	return &MsgRedeemed{Hub: inv.Hub, Joined: true}, nil
}
