// Package store provides methods for registering and accessing database adapters.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	adapter "github.com/hubchat/chat/server/db"
	"github.com/hubchat/chat/server/store/types"
)

var adp adapter.Adapter
var availableAdapters = make(map[string]adapter.Adapter)

// Unique ID generator
var uGen types.UidGenerator

// Message content encryption, nil if disabled.
var messageEncryptionService *MessageEncryptionService

type configType struct {
	// 16-byte key for XTEA. Used to initialize types.UidGenerator.
	UidKey []byte `json:"uid_key"`
	// 16, 24 or 32 byte AES key for encrypting message content at rest. Optional.
	EncryptionKey []byte `json:"encryption_key,omitempty"`
	// Maximum number of results to return from adapter.
	MaxResults int `json:"max_results"`
	// DB adapter name to use. Should be one of those specified in `Adapters`.
	UseAdapter string `json:"use_adapter"`
	// Configurations for individual adapters.
	Adapters map[string]json.RawMessage `json:"adapters"`
}

func openAdapter(workerId int, jsonconf json.RawMessage) error {
	var config configType
	if err := json.Unmarshal(jsonconf, &config); err != nil {
		return errors.New("store: failed to parse config: " + err.Error() + "(" + string(jsonconf) + ")")
	}

	if adp == nil {
		if len(config.UseAdapter) > 0 {
			// Adapter name specified explicitly.
			if ad, ok := availableAdapters[config.UseAdapter]; ok {
				adp = ad
			} else {
				return errors.New("store: " + config.UseAdapter + " adapter is not available in this binary")
			}
		} else if len(availableAdapters) == 1 {
			// Default to the only entry in availableAdapters.
			for _, v := range availableAdapters {
				adp = v
			}
		} else {
			return errors.New("store: db adapter is not specified. Please set `store_config.use_adapter` in `hubchat.conf`")
		}
	}

	if adp.IsOpen() {
		return errors.New("store: connection is already opened")
	}

	// Initialize snowflake.
	if workerId < 0 || workerId > 1023 {
		return errors.New("store: invalid worker ID")
	}

	if err := uGen.Init(uint(workerId), config.UidKey); err != nil {
		return errors.New("store: failed to init snowflake: " + err.Error())
	}

	es, err := NewMessageEncryptionService(config.EncryptionKey)
	if err != nil {
		return errors.New("store: " + err.Error())
	}
	messageEncryptionService = es

	if err := adp.SetMaxResults(config.MaxResults); err != nil {
		return err
	}

	var adapterConfig json.RawMessage
	if config.Adapters != nil {
		adapterConfig = config.Adapters[adp.GetName()]
	}

	return adp.Open(adapterConfig)
}

// PersistentStorageInterface defines methods used for interation with persistent storage.
type PersistentStorageInterface interface {
	Open(workerId int, jsonconf json.RawMessage) error
	Close() error
	IsOpen() bool
	GetAdapterName() string
	GetAdapterVersion() int
	GetDbVersion() int
	InitDb(jsonconf json.RawMessage, reset bool) error
	UpgradeDb(jsonconf json.RawMessage) error
	GetUid() types.Uid
	GetUidString() string
	DbStats() func() any
}

// Store is the main object for interacting with persistent storage.
var Store PersistentStorageInterface

type storeObj struct{}

// Open initializes the persistence system. Adapter holds a connection pool for a database instance.
//
//	workerId - snowflake worker id, unique per server process
//	jsonconf - configuration string
func (storeObj) Open(workerId int, jsonconf json.RawMessage) error {
	if err := openAdapter(workerId, jsonconf); err != nil {
		return err
	}

	return adp.CheckDbVersion()
}

// Close terminates connection to persistent storage.
func (storeObj) Close() error {
	if adp != nil && adp.IsOpen() {
		return adp.Close()
	}

	return nil
}

// IsOpen checks if persistent storage connection has been initialized.
func (storeObj) IsOpen() bool {
	if adp != nil {
		return adp.IsOpen()
	}

	return false
}

// GetAdapterName returns the name of the current adater.
func (storeObj) GetAdapterName() string {
	if adp != nil {
		return adp.GetName()
	}

	return ""
}

// GetAdapterVersion returns version of the current adater.
func (storeObj) GetAdapterVersion() int {
	if adp != nil {
		return adp.Version()
	}

	return -1
}

// GetDbVersion returns version of the underlying database.
func (storeObj) GetDbVersion() int {
	if adp != nil {
		vers, _ := adp.GetDbVersion()
		return vers
	}

	return -1
}

// InitDb creates and configures a new database instance. If 'reset' is true it will first
// attempt to drop an existing database. If jsconf is nil it will assume that the adapter is
// already open. If it's non-nil and the adapter is not open, it will use the config string
// to open the adapter first.
func (s storeObj) InitDb(jsonconf json.RawMessage, reset bool) error {
	if !s.IsOpen() {
		if err := openAdapter(1, jsonconf); err != nil {
			return err
		}
	}
	return adp.CreateDb(reset)
}

// UpgradeDb performes an upgrade of the database to the current adapter version.
// If jsconf is nil it will assume that the adapter is already open. If it's non-nil and the
// adapter is not open, it will use the config string to open the adapter first.
func (s storeObj) UpgradeDb(jsonconf json.RawMessage) error {
	if !s.IsOpen() {
		if err := openAdapter(1, jsonconf); err != nil {
			return err
		}
	}
	return adp.UpgradeDb()
}

// RegisterAdapter makes a persistence adapter available.
// If Register is called twice or if the adapter is nil, it panics.
func RegisterAdapter(a adapter.Adapter) {
	if a == nil {
		panic("store: Register adapter is nil")
	}

	adapterName := a.GetName()
	if _, ok := availableAdapters[adapterName]; ok {
		panic("store: adapter '" + adapterName + "' is already registered")
	}
	availableAdapters[adapterName] = a
}

// GetUid generates a unique ID suitable for use as a primary key.
func (storeObj) GetUid() types.Uid {
	return uGen.Get()
}

// GetUidString generate unique ID as string
func (storeObj) GetUidString() string {
	return uGen.GetStr()
}

// DbStats returns a callback returning db connection stats object.
func (s storeObj) DbStats() func() any {
	if !s.IsOpen() {
		return nil
	}
	return adp.Stats
}

// storageErr leaves typed store errors as is and marks everything else as a storage failure.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	var se types.StoreError
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrStorage, err)
}

func checkOpen() error {
	if adp == nil || !adp.IsOpen() {
		return fmt.Errorf("%w: store is not open", types.ErrStorage)
	}
	return nil
}

// EncodeHub serializes hub state into the snapshot format.
func EncodeHub(hub *types.Hub) ([]byte, error) {
	return json.Marshal(hub)
}

// DecodeHub parses a snapshot of the hub with the given id. Any failure is reported as types.ErrCorruptState.
func DecodeHub(id types.Uid, data []byte) (*types.Hub, error) {
	var hub types.Hub
	if err := json.Unmarshal(data, &hub); err != nil {
		return nil, fmt.Errorf("%w: hub %s: %v", types.ErrCorruptState, id, err)
	}
	if hub.Id != id {
		return nil, fmt.Errorf("%w: hub %s: snapshot belongs to %s", types.ErrCorruptState, id, hub.Id)
	}
	if hub.Owner.IsZero() {
		return nil, fmt.Errorf("%w: hub %s: missing owner", types.ErrCorruptState, id)
	}
	if _, ok := hub.Ranks[hub.DefaultRank]; !ok {
		return nil, fmt.Errorf("%w: hub %s: missing default rank", types.ErrCorruptState, id)
	}
	if hub.Channels == nil {
		hub.Channels = make(map[types.Uid]*types.Channel)
	}
	if hub.Members == nil {
		hub.Members = make(map[types.Uid]*types.Member)
	}
	for uid, m := range hub.Members {
		if m == nil {
			return nil, fmt.Errorf("%w: hub %s: empty member record %s", types.ErrCorruptState, id, uid)
		}
	}
	for rid, r := range hub.Ranks {
		if r == nil || r.Id != rid {
			return nil, fmt.Errorf("%w: hub %s: bad rank record %s", types.ErrCorruptState, id, rid)
		}
	}
	for cid, ch := range hub.Channels {
		if ch == nil || ch.Id != cid {
			return nil, fmt.Errorf("%w: hub %s: bad channel record %s", types.ErrCorruptState, id, cid)
		}
	}
	return &hub, nil
}

func hubRecord(hub *types.Hub) (*adapter.HubRecord, error) {
	state, err := EncodeHub(hub)
	if err != nil {
		return nil, err
	}
	return &adapter.HubRecord{
		Id:        hub.Id,
		Owner:     hub.Owner,
		Name:      hub.Name,
		CreatedAt: hub.CreatedAt,
		UpdatedAt: hub.UpdatedAt,
		State:     state,
	}, nil
}

// HubsObjMapperInterface persists complete hub snapshots.
type HubsObjMapperInterface interface {
	Create(hub *types.Hub) error
	Get(id types.Uid) (*types.Hub, error)
	Update(hub *types.Hub) error
	Delete(id types.Uid) error
}

// HubsObjMapper is a struct to hold methods for persistence mapping for the Hub object.
type HubsObjMapper struct{}

// Hubs is an instance of HubsObjMapper to map methods to.
var Hubs HubsObjMapperInterface

// Create writes the initial snapshot of a new hub.
func (HubsObjMapper) Create(hub *types.Hub) error {
	if err := checkOpen(); err != nil {
		return err
	}
	rec, err := hubRecord(hub)
	if err != nil {
		return err
	}
	return storageErr(adp.HubCreate(rec))
}

// Get loads and parses the hub snapshot. Returns types.ErrNotFound if there is no such hub.
func (HubsObjMapper) Get(id types.Uid) (*types.Hub, error) {
	if err := checkOpen(); err != nil {
		return nil, err
	}
	rec, err := adp.HubGet(id)
	if err != nil {
		return nil, storageErr(err)
	}
	if rec == nil {
		return nil, types.ErrNotFound
	}
	return DecodeHub(id, rec.State)
}

// Update replaces the hub snapshot.
func (HubsObjMapper) Update(hub *types.Hub) error {
	if err := checkOpen(); err != nil {
		return err
	}
	rec, err := hubRecord(hub)
	if err != nil {
		return err
	}
	return storageErr(adp.HubUpdate(rec))
}

// Delete removes the hub with all messages and invites.
func (HubsObjMapper) Delete(id types.Uid) error {
	if err := checkOpen(); err != nil {
		return err
	}
	return storageErr(adp.HubDelete(id))
}

// MessagesObjMapperInterface persists channel logs.
type MessagesObjMapperInterface interface {
	Save(msg *types.Message) error
	GetAll(hub, channel types.Uid, opts *types.BrowseOpt) ([]types.Message, error)
	DeleteAll(hub, channel types.Uid) error
	LastSeq(hub types.Uid) (map[types.Uid]int, error)
}

// MessagesObjMapper is a struct to hold methods for persistence mapping for the Message object.
type MessagesObjMapper struct{}

// Messages is an instance of MessagesObjMapper to map methods to.
var Messages MessagesObjMapperInterface

// Save appends the message to its channel log. Content is encrypted if encryption is enabled.
func (MessagesObjMapper) Save(msg *types.Message) error {
	if err := checkOpen(); err != nil {
		return err
	}
	stored := *msg
	if messageEncryptionService.IsEnabled() {
		content, err := messageEncryptionService.EncryptContent(msg.Content)
		if err != nil {
			return storageErr(err)
		}
		stored.Content = content
	}
	return storageErr(adp.MessageSave(&stored))
}

// GetAll returns messages newest first.
func (MessagesObjMapper) GetAll(hub, channel types.Uid, opts *types.BrowseOpt) ([]types.Message, error) {
	if err := checkOpen(); err != nil {
		return nil, err
	}
	msgs, err := adp.MessageGetAll(hub, channel, opts)
	if err != nil {
		return nil, storageErr(err)
	}
	if messageEncryptionService.IsEnabled() {
		for i := range msgs {
			if msgs[i].Content, err = messageEncryptionService.DecryptContent(msgs[i].Content); err != nil {
				return nil, storageErr(err)
			}
		}
	}
	return msgs, nil
}

// DeleteAll removes the log of the channel.
func (MessagesObjMapper) DeleteAll(hub, channel types.Uid) error {
	if err := checkOpen(); err != nil {
		return err
	}
	return storageErr(adp.MessageDeleteAll(hub, channel))
}

// LastSeq returns the highest stored message SeqId for each channel of the hub.
func (MessagesObjMapper) LastSeq(hub types.Uid) (map[types.Uid]int, error) {
	if err := checkOpen(); err != nil {
		return nil, err
	}
	seqs, err := adp.MessageLastSeq(hub)
	return seqs, storageErr(err)
}

// InvitesObjMapperInterface persists invites.
type InvitesObjMapperInterface interface {
	Create(inv *types.Invite) error
	Get(token string) (*types.Invite, error)
	Use(token string) error
	Delete(token string) error
	ForHub(hub types.Uid) ([]types.Invite, error)
}

// InvitesObjMapper is a struct to hold methods for persistence mapping for the Invite object.
type InvitesObjMapper struct{}

// Invites is an instance of InvitesObjMapper to map methods to.
var Invites InvitesObjMapperInterface

// Create stores a new invite.
func (InvitesObjMapper) Create(inv *types.Invite) error {
	if err := checkOpen(); err != nil {
		return err
	}
	return storageErr(adp.InviteCreate(inv))
}

// Get loads the invite. Returns types.ErrNotFound if there is no such invite.
func (InvitesObjMapper) Get(token string) (*types.Invite, error) {
	if err := checkOpen(); err != nil {
		return nil, err
	}
	inv, err := adp.InviteGet(token)
	if err != nil {
		return nil, storageErr(err)
	}
	if inv == nil {
		return nil, types.ErrNotFound
	}
	return inv, nil
}

// Use counts one redemption of the invite.
func (InvitesObjMapper) Use(token string) error {
	if err := checkOpen(); err != nil {
		return err
	}
	return storageErr(adp.InviteUse(token))
}

// Delete removes the invite.
func (InvitesObjMapper) Delete(token string) error {
	if err := checkOpen(); err != nil {
		return err
	}
	return storageErr(adp.InviteDelete(token))
}

// ForHub lists invites of the hub.
func (InvitesObjMapper) ForHub(hub types.Uid) ([]types.Invite, error) {
	if err := checkOpen(); err != nil {
		return nil, err
	}
	invites, err := adp.InvitesForHub(hub)
	return invites, storageErr(err)
}

func init() {
	Store = storeObj{}
	Hubs = HubsObjMapper{}
	Messages = MessagesObjMapper{}
	Invites = InvitesObjMapper{}
}
