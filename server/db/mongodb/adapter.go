//go:build mongodb
// +build mongodb

// Package mongodb is a database adapter for MongoDB.
package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	adapter "github.com/hubchat/chat/server/db"
	"github.com/hubchat/chat/server/db/common"
	"github.com/hubchat/chat/server/logs"
	"github.com/hubchat/chat/server/store"
	t "github.com/hubchat/chat/server/store/types"
	b "go.mongodb.org/mongo-driver/bson"
	mdb "go.mongodb.org/mongo-driver/mongo"
	mdbopts "go.mongodb.org/mongo-driver/mongo/options"
)

// mongoAdapter holds MongoDB connection data.
type mongoAdapter struct {
	conn            *mdb.Client
	db              *mdb.Database
	dbName          string
	maxResults      int
	version         int
	ctx             context.Context
	useTransactions bool
}

const (
	defaultHost     = "localhost:27017"
	defaultDatabase = "hubchat"

	adpVersion  = 100
	adapterName = "mongodb"
)

// See https://godoc.org/go.mongodb.org/mongo-driver/mongo/options#ClientOptions for explanations.
type configType struct {
	Addresses      any `json:"addresses,omitempty"`
	ConnectTimeout int `json:"timeout,omitempty"`

	// Options separately from ClientOptions (custom options):
	Database   string `json:"database,omitempty"`
	ReplicaSet string `json:"replica_set,omitempty"`

	AuthSource string `json:"auth_source,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
}

type hubDoc struct {
	Id        int64  `bson:"_id"`
	Owner     int64  `bson:"owner"`
	Name      string `bson:"name"`
	CreatedAt int64  `bson:"createdat"`
	UpdatedAt int64  `bson:"updatedat"`
	State     []byte `bson:"state"`
}

type messageDoc struct {
	Hub       int64  `bson:"hub"`
	Channel   int64  `bson:"channel"`
	SeqId     int    `bson:"seqid"`
	CreatedAt int64  `bson:"createdat"`
	Author    int64  `bson:"author"`
	Content   string `bson:"content"`
}

type inviteDoc struct {
	Token     string `bson:"_id"`
	Hub       int64  `bson:"hub"`
	CreatedBy int64  `bson:"createdby"`
	CreatedAt int64  `bson:"createdat"`
	ExpiresAt int64  `bson:"expiresat"`
	MaxUses   int    `bson:"maxuses"`
	Uses      int    `bson:"uses"`
}

func (d *inviteDoc) invite() t.Invite {
	return t.Invite{
		Token:     d.Token,
		Hub:       t.Uid(d.Hub),
		CreatedBy: t.Uid(d.CreatedBy),
		CreatedAt: common.FromMillis(d.CreatedAt),
		ExpiresAt: common.FromMillis(d.ExpiresAt),
		MaxUses:   d.MaxUses,
		Uses:      d.Uses,
	}
}

// Open initializes mongodb session
func (a *mongoAdapter) Open(jsonconfig json.RawMessage) error {
	if a.conn != nil {
		return errors.New("adapter mongodb is already connected")
	}

	var err error
	var config configType
	if len(jsonconfig) > 0 {
		if err = json.Unmarshal(jsonconfig, &config); err != nil {
			return errors.New("adapter mongodb failed to parse config: " + err.Error())
		}
	}

	opts := mdbopts.Client()

	switch addr := config.Addresses.(type) {
	case nil:
		opts.SetHosts([]string{defaultHost})
	case string:
		opts.SetHosts([]string{addr})
	case []any:
		var hosts []string
		for _, h := range addr {
			if s, ok := h.(string); ok {
				hosts = append(hosts, s)
			}
		}
		opts.SetHosts(hosts)
	default:
		return errors.New("adapter mongodb failed to parse config.Addresses")
	}

	if config.ConnectTimeout > 0 {
		opts.SetConnectTimeout(time.Duration(config.ConnectTimeout) * time.Second)
	}

	if config.Database == "" {
		a.dbName = defaultDatabase
	} else {
		a.dbName = config.Database
	}

	if config.ReplicaSet == "" {
		logs.Info.Println("MongoDB configured as standalone or replica_set option not set. Transaction support is disabled.")
	} else {
		opts.SetReplicaSet(config.ReplicaSet)
		a.useTransactions = true
	}

	if config.Username != "" {
		if config.AuthSource == "" {
			config.AuthSource = "admin"
		}
		opts.SetAuth(
			mdbopts.Credential{
				AuthMechanism: "SCRAM-SHA-256",
				AuthSource:    config.AuthSource,
				Username:      config.Username,
				Password:      config.Password,
				PasswordSet:   config.Password != "",
			})
	}

	if a.maxResults <= 0 {
		a.maxResults = common.DefaultMaxResults
	}

	a.ctx = context.Background()
	if a.conn, err = mdb.Connect(a.ctx, opts); err != nil {
		return err
	}
	a.db = a.conn.Database(a.dbName)
	a.version = -1

	return nil
}

// Close the adapter
func (a *mongoAdapter) Close() error {
	var err error
	if a.conn != nil {
		err = a.conn.Disconnect(a.ctx)
		a.conn = nil
		a.version = -1
	}
	return err
}

// IsOpen checks if the adapter is ready for use
func (a *mongoAdapter) IsOpen() bool {
	return a.conn != nil
}

// GetDbVersion returns current database version.
func (a *mongoAdapter) GetDbVersion() (int, error) {
	if a.version > 0 {
		return a.version, nil
	}

	var result struct {
		Key   string `bson:"_id"`
		Value int
	}
	if err := a.db.Collection("kvmeta").FindOne(a.ctx, b.M{"_id": "version"}).Decode(&result); err != nil {
		if errors.Is(err, mdb.ErrNoDocuments) {
			err = errors.New("Database not initialized")
		}
		return -1, err
	}

	a.version = result.Value
	return result.Value, nil
}

// CheckDbVersion checks if the actual database version matches adapter version.
func (a *mongoAdapter) CheckDbVersion() error {
	version, err := a.GetDbVersion()
	if err != nil {
		return err
	}

	if version != adpVersion {
		return errors.New("Invalid database version " + strconv.Itoa(version) +
			". Expected " + strconv.Itoa(adpVersion))
	}

	return nil
}

// Version returns adapter version
func (mongoAdapter) Version() int {
	return adpVersion
}

// GetName returns the name of the adapter
func (mongoAdapter) GetName() string {
	return adapterName
}

// SetMaxResults configures how many results can be returned in a single DB call.
func (a *mongoAdapter) SetMaxResults(val int) error {
	if val <= 0 {
		a.maxResults = common.DefaultMaxResults
	} else {
		a.maxResults = val
	}

	return nil
}

// Stats returns the number of sessions in use.
func (a *mongoAdapter) Stats() any {
	if a.conn == nil {
		return nil
	}
	return map[string]any{"InUse": a.conn.NumberSessionsInProgress()}
}

// CreateDb creates the collections and indexes. If reset is true, the database is dropped first.
func (a *mongoAdapter) CreateDb(reset bool) error {
	if reset {
		if err := a.db.Drop(a.ctx); err != nil {
			return err
		}
	}

	indexes := []struct {
		Collection string
		IndexOpts  mdb.IndexModel
	}{
		{Collection: "hubs", IndexOpts: mdb.IndexModel{Keys: b.M{"owner": 1}}},
		{Collection: "invites", IndexOpts: mdb.IndexModel{Keys: b.M{"hub": 1}}},
		{Collection: "messages", IndexOpts: mdb.IndexModel{
			Keys:    b.D{{Key: "hub", Value: 1}, {Key: "channel", Value: 1}, {Key: "seqid", Value: -1}},
			Options: mdbopts.Index().SetUnique(true),
		}},
	}
	for _, idx := range indexes {
		if _, err := a.db.Collection(idx.Collection).Indexes().CreateOne(a.ctx, idx.IndexOpts); err != nil {
			return err
		}
	}

	if _, err := a.db.Collection("kvmeta").InsertOne(a.ctx, b.M{"_id": "version", "value": adpVersion}); err != nil {
		return err
	}
	a.version = adpVersion
	return nil
}

// UpgradeDb upgrades the database, if necessary.
func (a *mongoAdapter) UpgradeDb() error {
	if _, err := a.GetDbVersion(); err != nil {
		return err
	}

	if a.version != adpVersion {
		return errors.New("Failed to perform database upgrade to version " + strconv.Itoa(adpVersion) +
			". DB is still at " + strconv.Itoa(a.version))
	}
	return nil
}

// HubCreate inserts a new hub record.
func (a *mongoAdapter) HubCreate(rec *adapter.HubRecord) error {
	_, err := a.db.Collection("hubs").InsertOne(a.ctx, &hubDoc{
		Id:        int64(rec.Id),
		Owner:     int64(rec.Owner),
		Name:      rec.Name,
		CreatedAt: common.ToMillis(rec.CreatedAt),
		UpdatedAt: common.ToMillis(rec.UpdatedAt),
		State:     rec.State,
	})
	if mdb.IsDuplicateKeyError(err) {
		return t.ErrDuplicate
	}
	return err
}

// HubGet loads a hub record. Returns (nil, nil) if not found.
func (a *mongoAdapter) HubGet(id t.Uid) (*adapter.HubRecord, error) {
	var doc hubDoc
	if err := a.db.Collection("hubs").FindOne(a.ctx, b.M{"_id": int64(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mdb.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &adapter.HubRecord{
		Id:        id,
		Owner:     t.Uid(doc.Owner),
		Name:      doc.Name,
		CreatedAt: common.FromMillis(doc.CreatedAt),
		UpdatedAt: common.FromMillis(doc.UpdatedAt),
		State:     doc.State,
	}, nil
}

// HubUpdate replaces the snapshot of an existing hub.
func (a *mongoAdapter) HubUpdate(rec *adapter.HubRecord) error {
	_, err := a.db.Collection("hubs").UpdateOne(a.ctx, b.M{"_id": int64(rec.Id)}, b.M{"$set": b.M{
		"owner":     int64(rec.Owner),
		"name":      rec.Name,
		"updatedat": common.ToMillis(rec.UpdatedAt),
		"state":     rec.State,
	}})
	return err
}

// HubDelete deletes the hub, its messages and its invites.
func (a *mongoAdapter) HubDelete(id t.Uid) error {
	del := func(ctx context.Context) error {
		if _, err := a.db.Collection("messages").DeleteMany(ctx, b.M{"hub": int64(id)}); err != nil {
			return err
		}
		if _, err := a.db.Collection("invites").DeleteMany(ctx, b.M{"hub": int64(id)}); err != nil {
			return err
		}
		_, err := a.db.Collection("hubs").DeleteOne(ctx, b.M{"_id": int64(id)})
		return err
	}

	if !a.useTransactions {
		return del(a.ctx)
	}

	sess, err := a.conn.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(a.ctx)
	_, err = sess.WithTransaction(a.ctx, func(sc mdb.SessionContext) (any, error) {
		return nil, del(sc)
	})
	return err
}

// MessageSave appends a message to the channel log.
func (a *mongoAdapter) MessageSave(msg *t.Message) error {
	_, err := a.db.Collection("messages").InsertOne(a.ctx, &messageDoc{
		Hub:       int64(msg.Hub),
		Channel:   int64(msg.Channel),
		SeqId:     msg.SeqId,
		CreatedAt: common.ToMillis(msg.CreatedAt),
		Author:    int64(msg.From),
		Content:   msg.Content,
	})
	if mdb.IsDuplicateKeyError(err) {
		return t.ErrDuplicate
	}
	return err
}

// MessageGetAll returns newest messages first.
func (a *mongoAdapter) MessageGetAll(hub, channel t.Uid, opts *t.BrowseOpt) ([]t.Message, error) {
	filter := b.M{"hub": int64(hub), "channel": int64(channel)}
	limit := a.maxResults
	if opts != nil {
		if opts.Before > 0 {
			filter["seqid"] = b.M{"$lte": opts.Before}
		}
		limit = common.Limit(opts.Limit, limit)
	}

	cur, err := a.db.Collection("messages").Find(a.ctx, filter,
		mdbopts.Find().SetSort(b.D{{Key: "seqid", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(a.ctx)

	var msgs []t.Message
	for cur.Next(a.ctx) {
		var doc messageDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, err
		}
		msgs = append(msgs, t.Message{
			Hub:       hub,
			Channel:   channel,
			SeqId:     doc.SeqId,
			From:      t.Uid(doc.Author),
			Content:   doc.Content,
			CreatedAt: common.FromMillis(doc.CreatedAt),
		})
	}
	return msgs, cur.Err()
}

// MessageDeleteAll removes the log of a single channel.
func (a *mongoAdapter) MessageDeleteAll(hub, channel t.Uid) error {
	_, err := a.db.Collection("messages").DeleteMany(a.ctx, b.M{"hub": int64(hub), "channel": int64(channel)})
	return err
}

// MessageLastSeq returns the highest SeqId per channel.
func (a *mongoAdapter) MessageLastSeq(hub t.Uid) (map[t.Uid]int, error) {
	pipeline := b.A{
		b.M{"$match": b.M{"hub": int64(hub)}},
		b.M{"$group": b.M{"_id": "$channel", "seq": b.M{"$max": "$seqid"}}},
	}
	cur, err := a.db.Collection("messages").Aggregate(a.ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(a.ctx)

	seqs := make(map[t.Uid]int)
	for cur.Next(a.ctx) {
		var row struct {
			Channel int64 `bson:"_id"`
			Seq     int   `bson:"seq"`
		}
		if err = cur.Decode(&row); err != nil {
			return nil, err
		}
		seqs[t.Uid(row.Channel)] = row.Seq
	}
	return seqs, cur.Err()
}

// InviteCreate stores a new invite.
func (a *mongoAdapter) InviteCreate(inv *t.Invite) error {
	_, err := a.db.Collection("invites").InsertOne(a.ctx, &inviteDoc{
		Token:     inv.Token,
		Hub:       int64(inv.Hub),
		CreatedBy: int64(inv.CreatedBy),
		CreatedAt: common.ToMillis(inv.CreatedAt),
		ExpiresAt: common.ToMillis(inv.ExpiresAt),
		MaxUses:   inv.MaxUses,
		Uses:      inv.Uses,
	})
	if mdb.IsDuplicateKeyError(err) {
		return t.ErrDuplicate
	}
	return err
}

// InviteGet loads an invite. Returns (nil, nil) if not found.
func (a *mongoAdapter) InviteGet(token string) (*t.Invite, error) {
	var doc inviteDoc
	if err := a.db.Collection("invites").FindOne(a.ctx, b.M{"_id": token}).Decode(&doc); err != nil {
		if errors.Is(err, mdb.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	inv := doc.invite()
	return &inv, nil
}

// InviteUse increments the use count of the invite if it's under the cap.
func (a *mongoAdapter) InviteUse(token string) error {
	filter := b.M{
		"_id": token,
		"$or": b.A{
			b.M{"maxuses": 0},
			b.M{"$expr": b.M{"$lt": b.A{"$uses", "$maxuses"}}},
		},
	}
	res, err := a.db.Collection("invites").UpdateOne(a.ctx, filter, b.M{"$inc": b.M{"uses": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	count, err := a.db.Collection("invites").CountDocuments(a.ctx, b.M{"_id": token})
	if err != nil {
		return err
	}
	if count == 0 {
		return t.ErrNotFound
	}
	return t.ErrInviteExhausted
}

// InviteDelete removes an invite.
func (a *mongoAdapter) InviteDelete(token string) error {
	res, err := a.db.Collection("invites").DeleteOne(a.ctx, b.M{"_id": token})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return t.ErrNotFound
	}
	return nil
}

// InvitesForHub returns invites of the hub, oldest first.
func (a *mongoAdapter) InvitesForHub(hub t.Uid) ([]t.Invite, error) {
	cur, err := a.db.Collection("invites").Find(a.ctx, b.M{"hub": int64(hub)},
		mdbopts.Find().SetSort(b.D{{Key: "createdat", Value: 1}}).SetLimit(int64(a.maxResults)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(a.ctx)

	var invites []t.Invite
	for cur.Next(a.ctx) {
		var doc inviteDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, err
		}
		invites = append(invites, doc.invite())
	}
	return invites, cur.Err()
}

var _ adapter.Adapter = (*mongoAdapter)(nil)

func init() {
	store.RegisterAdapter(&mongoAdapter{})
}

// GetTestAdapter returns an adapter object. It's required for running tests.
func GetTestAdapter() adapter.Adapter {
	return &mongoAdapter{}
}
