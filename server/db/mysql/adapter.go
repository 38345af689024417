//go:build mysql
// +build mysql

// Package mysql is a database adapter for MySQL.
package mysql

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	ms "github.com/go-sql-driver/mysql"
	adapter "github.com/hubchat/chat/server/db"
	"github.com/hubchat/chat/server/db/common"
	"github.com/hubchat/chat/server/store"
	"github.com/jmoiron/sqlx"
)

// mysqlAdapter holds MySQL connection data.
type mysqlAdapter struct {
	common.SQL

	dsn     string
	dbName  string
	version int
}

const (
	defaultDSN      = "root:@tcp(localhost:3306)/hubchat?parseTime=true&collation=utf8mb4_unicode_ci"
	defaultDatabase = "hubchat"

	adpVersion = 100

	adapterName = "mysql"
)

type configType struct {
	// DB connection settings.
	// Please, see https://pkg.go.dev/github.com/go-sql-driver/mysql#Config
	// for the full list of fields.
	ms.Config
	// Deprecated.
	DSN      string `json:"dsn,omitempty"`
	Database string `json:"database,omitempty"`

	// Maximum number of open connections to the database.
	MaxOpenConns int `json:"max_open_conns,omitempty"`
	// Maximum number of connections in the idle connection pool.
	MaxIdleConns int `json:"max_idle_conns,omitempty"`
	// Maximum amount of time a connection may be reused (in seconds).
	ConnMaxLifetime int `json:"conn_max_lifetime,omitempty"`
}

// Open initializes the database connection.
func (a *mysqlAdapter) Open(jsonconfig json.RawMessage) error {
	if a.DB != nil {
		return errors.New("mysql adapter is already connected")
	}

	if len(jsonconfig) < 2 {
		return errors.New("adapter mysql missing config")
	}

	var err error
	defaultCfg := ms.NewConfig()
	config := configType{Config: *defaultCfg}
	if err = json.Unmarshal(jsonconfig, &config); err != nil {
		return errors.New("mysql adapter failed to parse config: " + err.Error())
	}

	if dsn := config.FormatDSN(); dsn != defaultCfg.FormatDSN() {
		// MySql config is specified. Use it.
		a.dbName = config.DBName
		a.dsn = dsn
		if config.DSN != "" || config.Database != "" {
			return errors.New("mysql config: `dsn` and `database` fields are deprecated. Please, specify individual connection settings via mysql.Config: https://pkg.go.dev/github.com/go-sql-driver/mysql#Config")
		}
	} else {
		// Otherwise, use DSN and Database to configure database connection.
		a.dsn = config.DSN
		a.dbName = config.Database
	}

	if a.dsn == "" {
		a.dsn = defaultDSN
	}
	if a.dbName == "" {
		a.dbName = defaultDatabase
	}

	db, err := sqlx.Open("mysql", a.dsn)
	if err != nil {
		return err
	}

	// sql.Open does not open the network connection.
	// Force network connection here.
	if err = db.Ping(); isMissingDb(err) {
		// Missing DB is OK if we are initializing the database.
		err = nil
	}
	if err != nil {
		db.Close()
		return err
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifetime) * time.Second)
	}

	a.DB = db
	a.IsDupe = isDupe
	a.version = -1

	return nil
}

// Close closes the underlying database connection.
func (a *mysqlAdapter) Close() error {
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
func (a *mysqlAdapter) IsOpen() bool {
	return a.DB != nil
}

// GetDbVersion returns current database version.
func (a *mysqlAdapter) GetDbVersion() (int, error) {
	if a.version > 0 {
		return a.version, nil
	}

	var vers string
	err := a.DB.Get(&vers, "SELECT `value` FROM kvmeta WHERE `key`='version'")
	if err != nil {
		if isMissingDb(err) || isMissingTable(err) {
			err = errors.New("Database not initialized")
		}
		return -1, err
	}

	a.version, err = strconv.Atoi(vers)
	return a.version, err
}

// CheckDbVersion checks whether the actual DB version matches the expected version of this adapter.
func (a *mysqlAdapter) CheckDbVersion() error {
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
func (mysqlAdapter) Version() int {
	return adpVersion
}

// GetName returns string that adapter uses to register itself with store.
func (mysqlAdapter) GetName() string {
	return adapterName
}

// SetMaxResults configures how many results can be returned in a single DB call.
func (a *mysqlAdapter) SetMaxResults(val int) error {
	if val <= 0 {
		a.MaxResults = common.DefaultMaxResults
	} else {
		a.MaxResults = val
	}

	return nil
}

// Stats returns DB connection stats object.
func (a *mysqlAdapter) Stats() any {
	if a.DB == nil {
		return nil
	}
	return a.DB.Stats()
}

// CreateDb initializes the storage.
func (a *mysqlAdapter) CreateDb(reset bool) error {
	// Can't use an existing connection because it's configured with a database name which may not exist.
	cfg, err := ms.ParseDSN(a.dsn)
	if err != nil {
		return err
	}
	cfg.DBName = ""
	if a.DB != nil {
		a.DB.Close()
	}
	if a.DB, err = sqlx.Open("mysql", cfg.FormatDSN()); err != nil {
		return err
	}

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
		if _, err = tx.Exec("DROP DATABASE IF EXISTS " + a.dbName); err != nil {
			return err
		}
	}

	for _, stmt := range []string{
		"CREATE DATABASE " + a.dbName + " CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci",
		"USE " + a.dbName,
		"CREATE TABLE kvmeta(" +
			"`key`   VARCHAR(64) NOT NULL," +
			"`value` TEXT," +
			"PRIMARY KEY(`key`))",
		`CREATE TABLE hubs(
			id        BIGINT NOT NULL,
			owner     BIGINT NOT NULL,
			name      VARCHAR(255) NOT NULL,
			createdat BIGINT NOT NULL,
			updatedat BIGINT NOT NULL,
			state     MEDIUMBLOB NOT NULL,
			PRIMARY KEY(id),
			INDEX hubs_owner(owner))`,
		`CREATE TABLE messages(
			hub       BIGINT NOT NULL,
			channel   BIGINT NOT NULL,
			seqid     INT NOT NULL,
			createdat BIGINT NOT NULL,
			author    BIGINT NOT NULL,
			content   TEXT NOT NULL,
			PRIMARY KEY(hub, channel, seqid))`,
		`CREATE TABLE invites(
			token     VARCHAR(64) NOT NULL,
			hub       BIGINT NOT NULL,
			createdby BIGINT NOT NULL,
			createdat BIGINT NOT NULL,
			expiresat BIGINT NOT NULL DEFAULT 0,
			maxuses   INT NOT NULL DEFAULT 0,
			uses      INT NOT NULL DEFAULT 0,
			PRIMARY KEY(token),
			INDEX invites_hub(hub))`,
		"INSERT INTO kvmeta(`key`, `value`) VALUES('version', '" + strconv.Itoa(adpVersion) + "')",
	} {
		if _, err = tx.Exec(stmt); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	// Reconnect with the database name set.
	a.DB.Close()
	if a.DB, err = sqlx.Open("mysql", a.dsn); err != nil {
		return err
	}
	a.version = adpVersion
	return nil
}

// UpgradeDb upgrades the database, if necessary.
func (a *mysqlAdapter) UpgradeDb() error {
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
	var myerr *ms.MySQLError
	return errors.As(err, &myerr) && myerr.Number == 1062
}

func isMissingDb(err error) bool {
	var myerr *ms.MySQLError
	return errors.As(err, &myerr) && myerr.Number == 1049
}

func isMissingTable(err error) bool {
	var myerr *ms.MySQLError
	return errors.As(err, &myerr) && myerr.Number == 1146
}

var _ adapter.Adapter = (*mysqlAdapter)(nil)

func init() {
	store.RegisterAdapter(&mysqlAdapter{})
}

// GetTestAdapter returns an adapter object. It's required for running tests.
func GetTestAdapter() adapter.Adapter {
	return &mysqlAdapter{}
}
