// Package common contains utility methods used by all adapters.
package common

import (
	"database/sql"
	"errors"
	"time"

	adapter "github.com/hubchat/chat/server/db"
	t "github.com/hubchat/chat/server/store/types"
	"github.com/jmoiron/sqlx"
)

const (
	// DefaultMaxResults is the maximum number of records to return if not configured.
	DefaultMaxResults = 1024
)

// SQL implements the data access part of adapter.Adapter on top of database/sql.
// Queries use '?' placeholders and are rebound to the driver's bindvar style.
// Uids are stored as signed BIGINT, timestamps as milliseconds since the epoch.
type SQL struct {
	DB         *sqlx.DB
	MaxResults int
	// IsDupe reports driver-specific unique constraint violations.
	IsDupe func(error) bool
}

// ToMillis converts time to milliseconds since the epoch. Zero time is 0.
func ToMillis(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.UnixMilli()
}

// FromMillis is the inverse of ToMillis.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Limit caps the requested number of results at max.
func Limit(requested, max int) int {
	if requested <= 0 || requested > max {
		return max
	}
	return requested
}

func (s *SQL) dupe(err error) error {
	if err != nil && s.IsDupe != nil && s.IsDupe(err) {
		return t.ErrDuplicate
	}
	return err
}

func (s *SQL) maxResults() int {
	if s.MaxResults > 0 {
		return s.MaxResults
	}
	return DefaultMaxResults
}

// HubCreate inserts a new hub record.
func (s *SQL) HubCreate(rec *adapter.HubRecord) error {
	_, err := s.DB.Exec(s.DB.Rebind(
		"INSERT INTO hubs(id,owner,name,createdat,updatedat,state) VALUES(?,?,?,?,?,?)"),
		int64(rec.Id), int64(rec.Owner), rec.Name, ToMillis(rec.CreatedAt), ToMillis(rec.UpdatedAt), rec.State)
	return s.dupe(err)
}

// HubGet loads a hub record. Returns (nil, nil) if not found.
func (s *SQL) HubGet(id t.Uid) (*adapter.HubRecord, error) {
	var owner, created, updated int64
	rec := &adapter.HubRecord{Id: id}
	err := s.DB.QueryRow(s.DB.Rebind("SELECT owner,name,createdat,updatedat,state FROM hubs WHERE id=?"),
		int64(id)).Scan(&owner, &rec.Name, &created, &updated, &rec.State)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Nothing found
			return nil, nil
		}
		return nil, err
	}
	rec.Owner = t.Uid(owner)
	rec.CreatedAt = FromMillis(created)
	rec.UpdatedAt = FromMillis(updated)
	return rec, nil
}

// HubUpdate replaces the snapshot of an existing hub.
func (s *SQL) HubUpdate(rec *adapter.HubRecord) error {
	_, err := s.DB.Exec(s.DB.Rebind("UPDATE hubs SET owner=?,name=?,updatedat=?,state=? WHERE id=?"),
		int64(rec.Owner), rec.Name, ToMillis(rec.UpdatedAt), rec.State, int64(rec.Id))
	return err
}

// HubDelete deletes the hub, its messages and its invites in one transaction.
func (s *SQL) HubDelete(id t.Uid) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(tx.Rebind("DELETE FROM messages WHERE hub=?"), int64(id)); err != nil {
		return err
	}
	if _, err = tx.Exec(tx.Rebind("DELETE FROM invites WHERE hub=?"), int64(id)); err != nil {
		return err
	}
	if _, err = tx.Exec(tx.Rebind("DELETE FROM hubs WHERE id=?"), int64(id)); err != nil {
		return err
	}
	return tx.Commit()
}

// MessageSave appends a message to the channel log.
func (s *SQL) MessageSave(msg *t.Message) error {
	_, err := s.DB.Exec(s.DB.Rebind(
		"INSERT INTO messages(hub,channel,seqid,createdat,author,content) VALUES(?,?,?,?,?,?)"),
		int64(msg.Hub), int64(msg.Channel), msg.SeqId, ToMillis(msg.CreatedAt), int64(msg.From), msg.Content)
	return s.dupe(err)
}

// MessageGetAll returns newest messages first.
func (s *SQL) MessageGetAll(hub, channel t.Uid, opts *t.BrowseOpt) ([]t.Message, error) {
	query := "SELECT seqid,createdat,author,content FROM messages WHERE hub=? AND channel=?"
	args := []any{int64(hub), int64(channel)}
	limit := s.maxResults()
	if opts != nil {
		if opts.Before > 0 {
			query += " AND seqid<=?"
			args = append(args, opts.Before)
		}
		limit = Limit(opts.Limit, limit)
	}
	query += " ORDER BY seqid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.DB.Query(s.DB.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []t.Message
	for rows.Next() {
		var created, author int64
		msg := t.Message{Hub: hub, Channel: channel}
		if err = rows.Scan(&msg.SeqId, &created, &author, &msg.Content); err != nil {
			return nil, err
		}
		msg.CreatedAt = FromMillis(created)
		msg.From = t.Uid(author)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// MessageDeleteAll removes the log of a single channel.
func (s *SQL) MessageDeleteAll(hub, channel t.Uid) error {
	_, err := s.DB.Exec(s.DB.Rebind("DELETE FROM messages WHERE hub=? AND channel=?"), int64(hub), int64(channel))
	return err
}

// MessageLastSeq returns the highest SeqId per channel.
func (s *SQL) MessageLastSeq(hub t.Uid) (map[t.Uid]int, error) {
	rows, err := s.DB.Query(s.DB.Rebind("SELECT channel,MAX(seqid) FROM messages WHERE hub=? GROUP BY channel"),
		int64(hub))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seqs := make(map[t.Uid]int)
	for rows.Next() {
		var channel int64
		var seq int
		if err = rows.Scan(&channel, &seq); err != nil {
			return nil, err
		}
		seqs[t.Uid(channel)] = seq
	}
	return seqs, rows.Err()
}

// InviteCreate stores a new invite.
func (s *SQL) InviteCreate(inv *t.Invite) error {
	_, err := s.DB.Exec(s.DB.Rebind(
		"INSERT INTO invites(token,hub,createdby,createdat,expiresat,maxuses,uses) VALUES(?,?,?,?,?,?,?)"),
		inv.Token, int64(inv.Hub), int64(inv.CreatedBy), ToMillis(inv.CreatedAt), ToMillis(inv.ExpiresAt),
		inv.MaxUses, inv.Uses)
	return s.dupe(err)
}

const inviteColumns = "token,hub,createdby,createdat,expiresat,maxuses,uses"

func scanInvite(row interface{ Scan(...any) error }) (*t.Invite, error) {
	var hub, creator, created, expires int64
	inv := &t.Invite{}
	if err := row.Scan(&inv.Token, &hub, &creator, &created, &expires, &inv.MaxUses, &inv.Uses); err != nil {
		return nil, err
	}
	inv.Hub = t.Uid(hub)
	inv.CreatedBy = t.Uid(creator)
	inv.CreatedAt = FromMillis(created)
	inv.ExpiresAt = FromMillis(expires)
	return inv, nil
}

// InviteGet loads an invite. Returns (nil, nil) if not found.
func (s *SQL) InviteGet(token string) (*t.Invite, error) {
	inv, err := scanInvite(s.DB.QueryRow(s.DB.Rebind("SELECT "+inviteColumns+" FROM invites WHERE token=?"), token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return inv, err
}

// InviteUse increments the use count of the invite if it's under the cap.
func (s *SQL) InviteUse(token string) error {
	res, err := s.DB.Exec(s.DB.Rebind(
		"UPDATE invites SET uses=uses+1 WHERE token=? AND (maxuses=0 OR uses<maxuses)"), token)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var count int
	if err := s.DB.Get(&count, s.DB.Rebind("SELECT COUNT(*) FROM invites WHERE token=?"), token); err != nil {
		return err
	}
	if count == 0 {
		return t.ErrNotFound
	}
	return t.ErrInviteExhausted
}

// InviteDelete removes an invite.
func (s *SQL) InviteDelete(token string) error {
	res, err := s.DB.Exec(s.DB.Rebind("DELETE FROM invites WHERE token=?"), token)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return t.ErrNotFound
	}
	return nil
}

// InvitesForHub returns invites of the hub, oldest first.
func (s *SQL) InvitesForHub(hub t.Uid) ([]t.Invite, error) {
	rows, err := s.DB.Query(s.DB.Rebind("SELECT "+inviteColumns+" FROM invites WHERE hub=? ORDER BY createdat ASC LIMIT ?"),
		int64(hub), s.maxResults())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []t.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}
