/******************************************************************************
 *
 *  Description :
 *
 *    HTTP API: translates REST requests into hub commands.
 *
 *****************************************************************************/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hubchat/chat/server/auth"
	"github.com/hubchat/chat/server/logs"
	"github.com/hubchat/chat/server/store/types"
)

// Largest accepted request body.
const maxRequestBody = 64 << 10

// Default time to wait for a hub to reply.
const defaultRequestTimeout = 10 * time.Second

type ctxKey int

const userKey ctxKey = iota

type apiServer struct {
	reg *Registry
	// Maps a credential to a user id.
	resolve func(credential string) (types.Uid, error)
	// How long a request waits for the hub.
	timeout time.Duration
}

func newAPIServer(reg *Registry, timeout time.Duration) *apiServer {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &apiServer{reg: reg, resolve: auth.Resolve, timeout: timeout}
}

// routes returns the handler of the /v1 API.
func (a *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(serve404)
	r.MethodNotAllowed(serve405)
	r.Use(a.authenticate)

	r.Post("/hubs", a.timed(a.createHub))
	r.Route("/hubs/{hub}", func(r chi.Router) {
		r.Get("/", a.timed(a.getHub))
		r.Patch("/", a.timed(a.renameHub))
		r.Delete("/", a.timed(a.destroyHub))
		r.Post("/leave", a.timed(a.leaveHub))
		r.Get("/search", a.timed(a.search))
		r.Get("/live", a.serveLiveFeed)

		r.Get("/channels", a.timed(a.listChannels))
		r.Post("/channels", a.timed(a.createChannel))
		r.Patch("/channels/{ch}", a.timed(a.updateChannel))
		r.Delete("/channels/{ch}", a.timed(a.deleteChannel))
		r.Get("/channels/{ch}/messages", a.timed(a.getMessages))
		r.Post("/channels/{ch}/messages", a.timed(a.sendMessage))

		r.Get("/ranks", a.timed(a.listRanks))
		r.Post("/ranks", a.timed(a.createRank))
		r.Patch("/ranks/{rank}", a.timed(a.editRank))
		r.Delete("/ranks/{rank}", a.timed(a.deleteRank))

		r.Get("/members", a.timed(a.listMembers))
		r.Get("/members/{user}", a.timed(a.getMember))
		r.Put("/nickname", a.timed(a.setNickname))
		r.Post("/channels/{ch}/typing", a.timed(a.typing))

		r.Get("/members/{user}/ranks", a.timed(a.memberRanks))
		r.Put("/members/{user}/ranks/{rank}", a.timed(a.assignRank))
		r.Delete("/members/{user}/ranks/{rank}", a.timed(a.revokeRank))
		r.Post("/members/{user}/{action}", a.timed(a.moderate))
		r.Delete("/bans/{user}", a.timed(a.unban))

		r.Get("/invites", a.timed(a.listInvites))
		r.Post("/invites", a.timed(a.createInvite))
	})
	r.Delete("/invites/{token}", a.timed(a.revokeInvite))
	r.Post("/invites/{token}/redeem", a.timed(a.redeemInvite))

	return r
}

// authenticate resolves the bearer token to a user id. Websocket clients which cannot set
// headers may pass the token as the "token" query parameter.
func (a *apiServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		cred := ""
		if h := req.Header.Get("Authorization"); h != "" {
			scheme, token, ok := strings.Cut(h, " ")
			if ok && strings.EqualFold(scheme, "Bearer") {
				cred = strings.TrimSpace(token)
			}
		} else {
			cred = req.URL.Query().Get("token")
		}

		uid, err := a.resolve(cred)
		if err != nil {
			if !errors.Is(err, types.ErrUnauthenticated) {
				err = fmt.Errorf("%w: %v", types.ErrUnauthenticated, err)
			}
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), userKey, uid)))
	})
}

// timed limits how long the request waits for a hub.
func (a *apiServer) timed(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), a.timeout)
		defer cancel()
		fn(w, req.WithContext(ctx))
	}
}

func currentUser(req *http.Request) types.Uid {
	uid, _ := req.Context().Value(userKey).(types.Uid)
	return uid
}

func uidParam(req *http.Request, name string) (types.Uid, error) {
	return parseUidParam(chi.URLParam(req, name))
}

// hubAndUid parses the {hub} parameter and one more id parameter.
func hubAndUid(req *http.Request, name string) (types.Uid, types.Uid, error) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		return 0, 0, err
	}
	id, err := uidParam(req, name)
	if err != nil {
		return 0, 0, err
	}
	return hub, id, nil
}

// decodeBody parses the JSON request body into v.
func decodeBody(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", types.ErrMalformed)
		}
		return fmt.Errorf("%w: %v", types.ErrMalformed, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logs.Warn.Println("http: failed to write response", err)
	}
}

// writeResult sends a successful response with the result in params.
func writeResult(w http.ResponseWriter, status int, params any) {
	writeJSON(w, status, &MsgServerCtrl{
		Code:      status,
		Text:      http.StatusText(status),
		Params:    params,
		Timestamp: types.TimeNow(),
	})
}

// writeError sends the error as a stable code and the matching HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status, code := decodeStoreError(err)
	if status >= http.StatusInternalServerError {
		logs.Warn.Println("http: request failed:", err)
	}
	writeJSON(w, status, &MsgServerCtrl{
		Code:      status,
		Text:      code,
		Timestamp: types.TimeNow(),
	})
}

// reply sends either the error or the result.
func reply(w http.ResponseWriter, status int, params any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, status, params)
}

func serve404(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusNotFound, &MsgServerCtrl{
		Code:      http.StatusNotFound,
		Text:      "not_found",
		Timestamp: types.TimeNow(),
	})
}

func serve405(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, &MsgServerCtrl{
		Code:      http.StatusMethodNotAllowed,
		Text:      "method_not_allowed",
		Timestamp: types.TimeNow(),
	})
}

// Hubs.

func (a *apiServer) createHub(w http.ResponseWriter, req *http.Request) {
	var msg MsgHubCreate
	if err := decodeBody(w, req, &msg); err != nil {
		writeError(w, err)
		return
	}
	hub, err := a.reg.CreateHub(req.Context(), currentUser(req), msg.Name)
	reply(w, http.StatusCreated, hub, err)
}

func (a *apiServer) getHub(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	meta, err := a.reg.HubMetadata(req.Context(), hub, currentUser(req))
	reply(w, http.StatusOK, meta, err)
}

func (a *apiServer) renameHub(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	var msg MsgHubUpdate
	if err := decodeBody(w, req, &msg); err != nil {
		writeError(w, err)
		return
	}
	meta, err := a.reg.RenameHub(req.Context(), hub, currentUser(req), msg.Name)
	reply(w, http.StatusOK, meta, err)
}

func (a *apiServer) destroyHub(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	reply(w, http.StatusOK, nil, a.reg.DestroyHub(req.Context(), hub, currentUser(req)))
}

func (a *apiServer) leaveHub(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	reply(w, http.StatusOK, nil, a.reg.LeaveHub(req.Context(), hub, currentUser(req)))
}

func (a *apiServer) search(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	query := req.URL.Query()
	limit, err := parseIntParam(query.Get("limit"), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	found, err := a.reg.Search(req.Context(), hub, currentUser(req), query.Get("q"), limit)
	reply(w, http.StatusOK, found, err)
}

// Channels.

func (a *apiServer) listChannels(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	chans, err := a.reg.ListChannels(req.Context(), hub, currentUser(req))
	reply(w, http.StatusOK, chans, err)
}

func (a *apiServer) createChannel(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	var msg MsgChannelCreate
	if err := decodeBody(w, req, &msg); err != nil {
		writeError(w, err)
		return
	}
	ch, err := a.reg.CreateChannel(req.Context(), hub, currentUser(req), msg.Name, msg.Description)
	reply(w, http.StatusCreated, ch, err)
}

func (a *apiServer) updateChannel(w http.ResponseWriter, req *http.Request) {
	hub, ch, err := hubAndUid(req, "ch")
	if err != nil {
		writeError(w, err)
		return
	}
	var msg MsgChannelUpdate
	if err := decodeBody(w, req, &msg); err != nil {
		writeError(w, err)
		return
	}
	if msg.Name == nil && msg.Description == nil {
		writeError(w, fmt.Errorf("%w: nothing to update", types.ErrMalformed))
		return
	}
	updated, err := a.reg.UpdateChannel(req.Context(), hub, currentUser(req), ch, msg.Name, msg.Description)
	reply(w, http.StatusOK, updated, err)
}

func (a *apiServer) deleteChannel(w http.ResponseWriter, req *http.Request) {
	hub, ch, err := hubAndUid(req, "ch")
	if err != nil {
		writeError(w, err)
		return
	}
	reply(w, http.StatusOK, nil, a.reg.DeleteChannel(req.Context(), hub, currentUser(req), ch))
}

// Messages.

func (a *apiServer) getMessages(w http.ResponseWriter, req *http.Request) {
	hub, ch, err := hubAndUid(req, "ch")
	if err != nil {
		writeError(w, err)
		return
	}
	query := req.URL.Query()
	limit, err := parseIntParam(query.Get("limit"), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	before, err := parseIntParam(query.Get("before"), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := a.reg.GetMessages(req.Context(), hub, currentUser(req), ch, limit, before)
	reply(w, http.StatusOK, msgs, err)
}

func (a *apiServer) sendMessage(w http.ResponseWriter, req *http.Request) {
	hub, ch, err := hubAndUid(req, "ch")
	if err != nil {
		writeError(w, err)
		return
	}
	var msg MsgSend
	if err := decodeBody(w, req, &msg); err != nil {
		writeError(w, err)
		return
	}
	sent, err := a.reg.SendMessage(req.Context(), hub, currentUser(req), ch, msg.Content)
	reply(w, http.StatusCreated, sent, err)
}

func (a *apiServer) typing(w http.ResponseWriter, req *http.Request) {
	hub, ch, err := hubAndUid(req, "ch")
	if err != nil {
		writeError(w, err)
		return
	}
	var msg MsgTyping
	if err := decodeBody(w, req, &msg); err != nil {
		writeError(w, err)
		return
	}
	reply(w, http.StatusOK, nil, a.reg.Typing(req.Context(), hub, currentUser(req), ch, msg.Typing))
}

// Members.

func (a *apiServer) listMembers(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	members, err := a.reg.ListMembers(req.Context(), hub, currentUser(req))
	reply(w, http.StatusOK, members, err)
}

func (a *apiServer) getMember(w http.ResponseWriter, req *http.Request) {
	hub, user, err := hubAndUid(req, "user")
	if err != nil {
		writeError(w, err)
		return
	}
	member, err := a.reg.GetMember(req.Context(), hub, currentUser(req), user)
	reply(w, http.StatusOK, member, err)
}

func (a *apiServer) setNickname(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	var msg MsgNickname
	if err := decodeBody(w, req, &msg); err != nil {
		writeError(w, err)
		return
	}
	member, err := a.reg.SetNickname(req.Context(), hub, currentUser(req), msg.Nickname)
	reply(w, http.StatusOK, member, err)
}

// Ranks.

func (a *apiServer) listRanks(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	ranks, err := a.reg.ListRanks(req.Context(), hub, currentUser(req))
	reply(w, http.StatusOK, ranks, err)
}

func (a *apiServer) createRank(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	var msg MsgRank
	if err := decodeBody(w, req, &msg); err != nil {
		writeError(w, err)
		return
	}
	rank, err := a.reg.CreateRank(req.Context(), hub, currentUser(req), &msg)
	reply(w, http.StatusCreated, rank, err)
}

func (a *apiServer) editRank(w http.ResponseWriter, req *http.Request) {
	hub, rankId, err := hubAndUid(req, "rank")
	if err != nil {
		writeError(w, err)
		return
	}
	var msg MsgRank
	if err := decodeBody(w, req, &msg); err != nil {
		writeError(w, err)
		return
	}
	rank, err := a.reg.EditRank(req.Context(), hub, currentUser(req), rankId, &msg)
	reply(w, http.StatusOK, rank, err)
}

func (a *apiServer) deleteRank(w http.ResponseWriter, req *http.Request) {
	hub, rankId, err := hubAndUid(req, "rank")
	if err != nil {
		writeError(w, err)
		return
	}
	reply(w, http.StatusOK, nil, a.reg.DeleteRank(req.Context(), hub, currentUser(req), rankId))
}

// Members.

func (a *apiServer) memberRanks(w http.ResponseWriter, req *http.Request) {
	hub, user, err := hubAndUid(req, "user")
	if err != nil {
		writeError(w, err)
		return
	}
	ranks, err := a.reg.MemberRanks(req.Context(), hub, currentUser(req), user)
	reply(w, http.StatusOK, ranks, err)
}

func (a *apiServer) assignRank(w http.ResponseWriter, req *http.Request) {
	a.changeRank(w, req, true)
}

func (a *apiServer) revokeRank(w http.ResponseWriter, req *http.Request) {
	a.changeRank(w, req, false)
}

func (a *apiServer) changeRank(w http.ResponseWriter, req *http.Request, assign bool) {
	hub, user, err := hubAndUid(req, "user")
	if err != nil {
		writeError(w, err)
		return
	}
	rankId, err := uidParam(req, "rank")
	if err != nil {
		writeError(w, err)
		return
	}
	var ranks types.UidSlice
	if assign {
		ranks, err = a.reg.AssignRank(req.Context(), hub, currentUser(req), user, rankId)
	} else {
		ranks, err = a.reg.RevokeRank(req.Context(), hub, currentUser(req), user, rankId)
	}
	reply(w, http.StatusOK, ranks, err)
}

// moderate handles kick, ban, mute and unmute.
func (a *apiServer) moderate(w http.ResponseWriter, req *http.Request) {
	hub, user, err := hubAndUid(req, "user")
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, asUser := req.Context(), currentUser(req)
	switch chi.URLParam(req, "action") {
	case "kick":
		err = a.reg.KickMember(ctx, hub, asUser, user)
	case "ban":
		err = a.reg.BanMember(ctx, hub, asUser, user)
	case "mute":
		err = a.reg.MuteMember(ctx, hub, asUser, user, true)
	case "unmute":
		err = a.reg.MuteMember(ctx, hub, asUser, user, false)
	default:
		serve404(w, req)
		return
	}
	reply(w, http.StatusOK, nil, err)
}

func (a *apiServer) unban(w http.ResponseWriter, req *http.Request) {
	hub, user, err := hubAndUid(req, "user")
	if err != nil {
		writeError(w, err)
		return
	}
	reply(w, http.StatusOK, nil, a.reg.UnbanMember(req.Context(), hub, currentUser(req), user))
}

// Invites.

func (a *apiServer) listInvites(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	invites, err := a.reg.ListInvites(req.Context(), hub, currentUser(req))
	reply(w, http.StatusOK, invites, err)
}

func (a *apiServer) createInvite(w http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(w, err)
		return
	}
	var msg MsgInviteCreate
	if err := decodeBody(w, req, &msg); err != nil {
		writeError(w, err)
		return
	}
	ttl, err := parseTTL(msg.TTL)
	if err != nil {
		writeError(w, err)
		return
	}
	inv, err := a.reg.CreateInvite(req.Context(), hub, currentUser(req), msg.MaxUses, ttl)
	reply(w, http.StatusCreated, inv, err)
}

func (a *apiServer) revokeInvite(w http.ResponseWriter, req *http.Request) {
	err := a.reg.RevokeInvite(req.Context(), chi.URLParam(req, "token"), currentUser(req))
	reply(w, http.StatusOK, nil, err)
}

func (a *apiServer) redeemInvite(w http.ResponseWriter, req *http.Request) {
	res, err := a.reg.RedeemInvite(req.Context(), chi.URLParam(req, "token"), currentUser(req))
	reply(w, http.StatusOK, res, err)
}
