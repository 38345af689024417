package main

/******************************************************************************
 *
 *  Description :
 *
 *    Wire protocol structures
 *
 *****************************************************************************/

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hubchat/chat/server/index"
	"github.com/hubchat/chat/server/store/types"
)

// MsgHubCreate is the payload of a request to create a hub.
type MsgHubCreate struct {
	Name string `json:"name"`
}

// MsgHubUpdate is the payload of a request to rename a hub.
type MsgHubUpdate struct {
	Name string `json:"name"`
}

// MsgChannelCreate is the payload of a request to create a channel.
type MsgChannelCreate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// MsgChannelUpdate is the payload of a request to change a channel. Nil fields are left unchanged.
type MsgChannelUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// MsgSend is the payload of a request to post a message.
type MsgSend struct {
	Content string `json:"content"`
}

// MsgRank is the payload of a request to create a rank, or to change one.
// In an update nil fields are left unchanged, permissions are merged
// and "unset" removes a setting.
type MsgRank struct {
	Name     *string                     `json:"name,omitempty"`
	Priority *int                        `json:"priority,omitempty"`
	Perms    types.PermSet               `json:"perms,omitempty"`
	Channels map[types.Uid]types.PermSet `json:"channels,omitempty"`
}

// MsgInviteCreate is the payload of a request to create an invite.
type MsgInviteCreate struct {
	// Zero means unlimited.
	MaxUses int `json:"max_uses,omitempty"`
	// Duration string like "24h". Empty means the invite does not expire.
	TTL string `json:"ttl,omitempty"`
}

// MsgNickname is the payload of a request to change the caller's nickname in a hub.
// Empty nickname clears it.
type MsgNickname struct {
	Nickname string `json:"nickname"`
}

// MsgTyping is the payload of a typing notification.
type MsgTyping struct {
	// False when the user stopped typing.
	Typing bool `json:"typing"`
}

// Kinds of messages a live feed client may send.
const feedTyping = "typing"

// MsgFeedClient is a message sent by a live feed client over the websocket.
type MsgFeedClient struct {
	What    string    `json:"what"`
	Channel types.Uid `json:"channel"`
	// False when the user stopped typing.
	Typing bool `json:"typing"`
}

// MsgMember describes a member of the hub, or a banned former member.
type MsgMember struct {
	User     types.Uid      `json:"user"`
	Nickname string         `json:"nickname,omitempty"`
	Ranks    types.UidSlice `json:"ranks,omitempty"`
	// Zero for banned users who are not members.
	JoinedAt time.Time `json:"joined,omitzero"`
	Owner    bool      `json:"owner,omitempty"`
	Muted    bool      `json:"muted"`
	Banned   bool      `json:"banned"`
	BannedAt time.Time `json:"banned_at,omitzero"`
}

// MsgHubMeta is the hub summary returned by get_metadata.
type MsgHubMeta struct {
	Id          types.Uid `json:"id"`
	Name        string    `json:"name"`
	Owner       types.Uid `json:"owner"`
	CreatedAt   time.Time `json:"created"`
	MemberCount int       `json:"members"`
}

// MsgRedeemed is the result of a successful invite redemption.
type MsgRedeemed struct {
	Hub types.Uid `json:"hub"`
	// False if the user was already a member.
	Joined bool `json:"joined"`
}

// MsgServerCtrl is a generic response to a request. It carries either the result or the error.
type MsgServerCtrl struct {
	Code      int       `json:"code"`
	Text      string    `json:"text,omitempty"`
	Params    any       `json:"params,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Live feed event kinds.
const (
	evtMessage        = "msg"
	evtChannel        = "channel"
	evtChannelDeleted = "channel_deleted"
	evtRank           = "rank"
	evtRankDeleted    = "rank_deleted"
	evtMemberJoined   = "member_joined"
	evtMemberLeft     = "member_left"
	evtMemberUpdated  = "member_updated"
	evtHub            = "hub"
	evtHubDeleted     = "hub_deleted"
	evtTyping         = "typing"
	evtTypingStopped  = "typing_stopped"
)

// HubEvent is a notification sent to live feed subscribers.
type HubEvent struct {
	What      string         `json:"what"`
	Hub       types.Uid      `json:"hub"`
	Channel   types.Uid      `json:"channel,omitempty"`
	Rank      types.Uid      `json:"rank,omitempty"`
	User      types.Uid      `json:"user,omitempty"`
	Msg       *types.Message `json:"msg,omitempty"`
	Timestamp time.Time      `json:"ts"`
}

// decodeStoreError maps an error to HTTP status and a stable error code.
func decodeStoreError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, "ok"
	case errors.Is(err, types.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, types.ErrInvalidName):
		return http.StatusBadRequest, "invalid_name"
	case errors.Is(err, types.ErrInvalidBody):
		return http.StatusBadRequest, "invalid_body"
	case errors.Is(err, types.ErrMalformed):
		return http.StatusBadRequest, "malformed"
	case errors.Is(err, types.ErrInviteExpired):
		return http.StatusGone, "invite_expired"
	case errors.Is(err, types.ErrInviteExhausted):
		return http.StatusGone, "invite_exhausted"
	case errors.Is(err, types.ErrBusy):
		return http.StatusServiceUnavailable, "busy"
	case errors.Is(err, types.ErrCorruptState):
		return http.StatusInternalServerError, "corrupt_state"
	case errors.Is(err, types.ErrStorage):
		return http.StatusInternalServerError, "storage_error"
	case errors.Is(err, types.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, types.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, index.ErrNotSupported):
		return http.StatusNotImplemented, "not_supported"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "canceled"
	}
	return http.StatusInternalServerError, "internal"
}

// errorCode returns the stable code of the error, "ok" for nil.
func errorCode(err error) string {
	_, code := decodeStoreError(err)
	return code
}
