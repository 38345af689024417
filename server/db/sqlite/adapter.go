// Package sqlite is a database adapter for SQLite. It's the default adapter: it needs no
// database server and no cgo.
package sqlite

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	adapter "github.com/hubchat/chat/server/db"
	"github.com/hubchat/chat/server/db/common"
	"github.com/hubchat/chat/server/store"
	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// sqliteAdapter holds SQLite connection data.
type sqliteAdapter struct {
	common.SQL

	path    string
	version int
}

const (
	defaultPath = "./hubchat.db"

	adpVersion = 100

	adapterName = "sqlite"
)

type configType struct {
	// Path to the database file. Use ":memory:" for a transient database.
	Path string `json:"path,omitempty"`
}

// Open initializes the database connection.
func (a *sqliteAdapter) Open(jsonconfig json.RawMessage) error {
	if a.DB != nil {
		return errors.New("sqlite adapter is already connected")
	}

	var config configType
	if len(jsonconfig) > 0 {
		if err := json.Unmarshal(jsonconfig, &config); err != nil {
			return errors.New("sqlite adapter failed to parse config: " + err.Error())
		}
	}

	a.path = config.Path
	if a.path == "" {
		a.path = defaultPath
	}

	dsn := a.path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if a.path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	// SQLite serializes writers anyway. A single connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return err
	}

	a.DB = db
	a.IsDupe = isDupe
	a.version = -1

	return nil
}

// Close closes the underlying database connection.
func (a *sqliteAdapter) Close() error {
	var err error
	if a.DB != nil {
		err = a.DB.Close()
		a.DB = nil
		a.version = -1
	}
	return err
}

// IsOpen returns true if connection to database has been established. It does not check if
// connection is actually live.
func (a *sqliteAdapter) IsOpen() bool {
	return a.DB != nil
}

// GetDbVersion returns current database version.
func (a *sqliteAdapter) GetDbVersion() (int, error) {
	if a.version > 0 {
		return a.version, nil
	}

	var vers string
	err := a.DB.Get(&vers, "SELECT `value` FROM kvmeta WHERE `key`='version'")
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			err = errors.New("Database not initialized")
		}
		return -1, err
	}

	a.version, err = strconv.Atoi(vers)
	return a.version, err
}

// CheckDbVersion checks whether the actual DB version matches the expected version of this adapter.
func (a *sqliteAdapter) CheckDbVersion() error {
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

// Version returns adapter version.
func (sqliteAdapter) Version() int {
	return adpVersion
}

// GetName returns string that adapter uses to register itself with store.
func (sqliteAdapter) GetName() string {
	return adapterName
}

// SetMaxResults configures how many results can be returned in a single DB call.
func (a *sqliteAdapter) SetMaxResults(val int) error {
	if val <= 0 {
		a.MaxResults = common.DefaultMaxResults
	} else {
		a.MaxResults = val
	}

	return nil
}

// Stats returns DB connection stats object.
func (a *sqliteAdapter) Stats() any {
	if a.DB == nil {
		return nil
	}
	return a.DB.Stats()
}

// CreateDb initializes the storage. If reset is true, existing tables are dropped first.
func (a *sqliteAdapter) CreateDb(reset bool) error {
	tx, err := a.DB.Beginx()
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if reset {
		for _, table := range []string{"messages", "invites", "hubs", "kvmeta"} {
			if _, err = tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return err
			}
		}
	}

	for _, stmt := range []string{
		"CREATE TABLE kvmeta(" +
			"`key`   VARCHAR(64) NOT NULL PRIMARY KEY," +
			"`value` TEXT)",
		`CREATE TABLE hubs(
			id        BIGINT NOT NULL PRIMARY KEY,
			owner     BIGINT NOT NULL,
			name      VARCHAR(255) NOT NULL,
			createdat BIGINT NOT NULL,
			updatedat BIGINT NOT NULL,
			state     BLOB NOT NULL)`,
		`CREATE INDEX hubs_owner ON hubs(owner)`,
		`CREATE TABLE messages(
			hub       BIGINT NOT NULL,
			channel   BIGINT NOT NULL,
			seqid     INT NOT NULL,
			createdat BIGINT NOT NULL,
			author    BIGINT NOT NULL,
			content   TEXT NOT NULL,
			PRIMARY KEY(hub, channel, seqid))`,
		`CREATE TABLE invites(
			token     VARCHAR(64) NOT NULL PRIMARY KEY,
			hub       BIGINT NOT NULL,
			createdby BIGINT NOT NULL,
			createdat BIGINT NOT NULL,
			expiresat BIGINT NOT NULL DEFAULT 0,
			maxuses   INT NOT NULL DEFAULT 0,
			uses      INT NOT NULL DEFAULT 0)`,
		`CREATE INDEX invites_hub ON invites(hub)`,
		"INSERT INTO kvmeta(`key`, `value`) VALUES('version', '" + strconv.Itoa(adpVersion) + "')",
	} {
		if _, err = tx.Exec(stmt); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	a.version = adpVersion
	return nil
}

// UpgradeDb upgrades the database, if necessary.
func (a *sqliteAdapter) UpgradeDb() error {
	if _, err := a.GetDbVersion(); err != nil {
		return err
	}

	if a.version != adpVersion {
		return errors.New("Failed to perform database upgrade to version " + strconv.Itoa(adpVersion) +
			". DB is still at " + strconv.Itoa(a.version))
	}
	return nil
}

func isDupe(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
}

var _ adapter.Adapter = (*sqliteAdapter)(nil)

func init() {
	store.RegisterAdapter(&sqliteAdapter{})
}
