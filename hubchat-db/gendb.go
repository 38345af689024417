package main

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hubchat/chat/server/store"
	"github.com/hubchat/chat/server/store/types"
)

/*
Hub object in data.json

	"name": "Gardening",
	"owner": "alice",
	"createdAt": "-140h",
	"members": ["bob", "carol"],
	"channels": [{"name": "roses", "description": "All about roses"}],
	"invites": [{"maxUses": 5, "expireIn": "72h"}]
*/
type Hub struct {
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	CreatedAt string    `json:"createdAt"`
	Members   []string  `json:"members"`
	Channels  []Channel `json:"channels"`
	Invites   []Invite  `json:"invites"`
}

// Channel is an additional channel of a sample hub.
type Channel struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Invite is a sample invite created by the hub owner.
type Invite struct {
	MaxUses  int    `json:"maxUses"`
	ExpireIn string `json:"expireIn"`
}

// Data is the content of data.json.
type Data struct {
	// User names. Each gets a random user id printed to the log.
	Users []string `json:"users"`
	Hubs  []Hub    `json:"hubs"`
	// Message bodies posted round robin to the channels of each hub.
	Messages []string `json:"messages"`
}

// Same values as in the server.
const (
	defaultRankName    = "everyone"
	defaultChannelName = "chat"
)

func genDb(data *Data) error {
	if len(data.Hubs) == 0 {
		log.Println("No sample data to load. All done.")
		return nil
	}

	now := types.TimeNow()

	users := make(map[string]types.Uid, len(data.Users))
	for _, name := range data.Users {
		uid := store.Store.GetUid()
		users[name] = uid
		log.Printf("User '%s' is %s", name, uid)
	}
	lookup := func(name string) (types.Uid, error) {
		if uid, ok := users[name]; ok {
			return uid, nil
		}
		return types.ZeroUid, errors.New("unknown user '" + name + "'")
	}

	log.Println("Creating hubs")
	for _, hh := range data.Hubs {
		owner, err := lookup(hh.Owner)
		if err != nil {
			return err
		}
		created := getCreatedTime(now, hh.CreatedAt)
		hub := newSampleHub(owner, hh.Name, created)

		channels := []types.Uid{}
		for id := range hub.Channels {
			channels = append(channels, id)
		}
		for _, cc := range hh.Channels {
			ch := &types.Channel{
				Id:          store.Store.GetUid(),
				Name:        cc.Name,
				Description: cc.Description,
				Seq:         hub.NextSeq(),
				CreatedAt:   created,
			}
			hub.Channels[ch.Id] = ch
			hub.Ranks[hub.DefaultRank].Channels[ch.Id] = types.PermSet{
				types.PermViewChannels: types.PermAllow,
				types.PermReadMessages: types.PermAllow,
				types.PermSendMessages: types.PermAllow,
			}
			channels = append(channels, ch.Id)
		}

		posters := []types.Uid{owner}
		for _, name := range hh.Members {
			uid, err := lookup(name)
			if err != nil {
				return err
			}
			if hub.IsMember(uid) {
				continue
			}
			hub.Members[uid] = &types.Member{
				Ranks:    types.UidSlice{hub.DefaultRank},
				JoinedAt: created,
			}
			posters = append(posters, uid)
		}

		if err := store.Hubs.Create(hub); err != nil {
			return err
		}
		log.Printf("Hub '%s' is %s", hub.Name, hub.Id)

		for _, ii := range hh.Invites {
			inv := &types.Invite{
				Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
				Hub:       hub.Id,
				CreatedBy: owner,
				CreatedAt: created,
				MaxUses:   ii.MaxUses,
			}
			if ii.ExpireIn != "" {
				ttl, err := time.ParseDuration(ii.ExpireIn)
				if err != nil {
					return err
				}
				inv.ExpiresAt = now.Add(ttl)
			}
			if err := store.Invites.Create(inv); err != nil {
				return err
			}
			log.Printf("Invite to '%s': %s", hub.Name, inv.Token)
		}

		if err := genMessages(hub, channels, posters, data.Messages, created, now); err != nil {
			return err
		}
	}

	log.Println("All done.")
	return nil
}

// newSampleHub builds a hub the same way the server creates one: the owner is the only
// member, the "everyone" rank can see, read and write the "chat" channel.
func newSampleHub(owner types.Uid, name string, created time.Time) *types.Hub {
	hub := &types.Hub{
		Id:        store.Store.GetUid(),
		Name:      name,
		Owner:     owner,
		CreatedAt: created,
		UpdatedAt: created,
		Channels:  make(map[types.Uid]*types.Channel),
		Ranks:     make(map[types.Uid]*types.Rank),
		Members:   make(map[types.Uid]*types.Member),
	}
	chat := &types.Channel{
		Id:        store.Store.GetUid(),
		Name:      defaultChannelName,
		Seq:       hub.NextSeq(),
		CreatedAt: created,
	}
	hub.Channels[chat.Id] = chat

	everyone := &types.Rank{
		Id:        store.Store.GetUid(),
		Name:      defaultRankName,
		Seq:       hub.NextSeq(),
		CreatedAt: created,
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
		JoinedAt: created,
	}
	return hub
}

// genMessages spreads the messages evenly in time between hub creation and now.
func genMessages(hub *types.Hub, channels, posters []types.Uid, bodies []string, from, to time.Time) error {
	if len(bodies) == 0 {
		return nil
	}
	step := to.Sub(from) / time.Duration(len(bodies)+1)
	seqs := make(map[types.Uid]int, len(channels))
	for i, body := range bodies {
		ch := channels[i%len(channels)]
		seqs[ch]++
		msg := &types.Message{
			Hub:       hub.Id,
			Channel:   ch,
			SeqId:     seqs[ch],
			From:      posters[i%len(posters)],
			Content:   body,
			CreatedAt: from.Add(step * time.Duration(i+1)).Round(time.Millisecond),
		}
		if err := store.Messages.Save(msg); err != nil {
			return err
		}
	}
	log.Printf("Hub '%s': %d messages", hub.Name, len(bodies))
	return nil
}

// getCreatedTime converts a negative offset like "-140h" into a time before now.
func getCreatedTime(now time.Time, delta string) time.Time {
	if delta == "" {
		return now
	}
	dd, err := time.ParseDuration(delta)
	if err != nil {
		log.Fatal("Invalid duration string", delta)
	}
	return now.Add(dd).Round(time.Millisecond)
}
