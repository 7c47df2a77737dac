/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jabberwock-im/jabberwock/model/rostermodel"
)

type rowScanner interface {
	Scan(...interface{}) error
}

type mySQLRoster struct {
	*mySQLStorage
}

func newRoster(db *sql.DB) *mySQLRoster {
	return &mySQLRoster{mySQLStorage: newStorage(db)}
}

// UpsertRosterItem inserts a new roster item entity into storage, or updates it if previously inserted.
func (r *mySQLRoster) UpsertRosterItem(ctx context.Context, ri *rostermodel.Item) (rostermodel.Version, error) {
	err := r.inTransaction(ctx, func(tx *sql.Tx) error {
		q := sq.Insert("roster_versions").
			Columns("username", "created_at", "updated_at").
			Values(ri.Username, nowExpr, nowExpr).
			Suffix("ON DUPLICATE KEY UPDATE ver = ver + 1, updated_at = NOW()")

		if _, err := q.RunWith(tx).ExecContext(ctx); err != nil {
			return err
		}
		groups := strings.Join(ri.Groups, ";")

		verExpr := sq.Expr("(SELECT ver FROM roster_versions WHERE username = ?)", ri.Username)
		q = sq.Insert("roster_items").
			Columns("username", "jid", "name", "subscription", "`groups`", "ask", "ver", "created_at", "updated_at").
			Values(ri.Username, ri.JID, ri.Name, ri.Subscription, groups, ri.Ask, verExpr, nowExpr, nowExpr).
			Suffix("ON DUPLICATE KEY UPDATE name = ?, subscription = ?, `groups` = ?, ask = ?, ver = ver + 1, updated_at = NOW()", ri.Name, ri.Subscription, groups, ri.Ask)

		_, err := q.RunWith(tx).ExecContext(ctx)
		return err
	})
	if err != nil {
		return rostermodel.Version{}, err
	}
	return r.fetchRosterVer(ctx, ri.Username)
}

// DeleteRosterItem deletes a roster item entity from storage.
func (r *mySQLRoster) DeleteRosterItem(ctx context.Context, username, jid string) (rostermodel.Version, error) {
	err := r.inTransaction(ctx, func(tx *sql.Tx) error {
		q := sq.Insert("roster_versions").
			Columns("username", "created_at", "updated_at").
			Values(username, nowExpr, nowExpr).
			Suffix("ON DUPLICATE KEY UPDATE ver = ver + 1, last_deletion_ver = ver, updated_at = NOW()")

		if _, err := q.RunWith(tx).ExecContext(ctx); err != nil {
			return err
		}
		_, err := sq.Delete("roster_items").
			Where(sq.And{sq.Eq{"username": username}, sq.Eq{"jid": jid}}).
			RunWith(tx).ExecContext(ctx)
		return err
	})
	if err != nil {
		return rostermodel.Version{}, err
	}
	return r.fetchRosterVer(ctx, username)
}

// FetchRosterItems retrieves from storage all roster item entities associated to a given user.
func (r *mySQLRoster) FetchRosterItems(ctx context.Context, username string) ([]rostermodel.Item, rostermodel.Version, error) {
	q := sq.Select("username", "jid", "name", "subscription", "`groups`", "ask", "ver").
		From("roster_items").
		Where(sq.Eq{"username": username}).
		OrderBy("created_at DESC")

	rows, err := q.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, rostermodel.Version{}, err
	}
	defer func() { _ = rows.Close() }()

	var items []rostermodel.Item
	for rows.Next() {
		var ri rostermodel.Item
		if err := scanRosterItemEntity(&ri, rows); err != nil {
			return nil, rostermodel.Version{}, err
		}
		items = append(items, ri)
	}
	ver, err := r.fetchRosterVer(ctx, username)
	if err != nil {
		return nil, rostermodel.Version{}, err
	}
	return items, ver, nil
}

// FetchRosterItem retrieves from storage a roster item entity.
func (r *mySQLRoster) FetchRosterItem(ctx context.Context, username, jid string) (*rostermodel.Item, error) {
	q := sq.Select("username", "jid", "name", "subscription", "`groups`", "ask", "ver").
		From("roster_items").
		Where(sq.And{sq.Eq{"username": username}, sq.Eq{"jid": jid}})

	var ri rostermodel.Item
	err := scanRosterItemEntity(&ri, q.RunWith(r.db).QueryRowContext(ctx))
	switch err {
	case nil:
		return &ri, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

func (r *mySQLRoster) fetchRosterVer(ctx context.Context, username string) (rostermodel.Version, error) {
	q := sq.Select("IFNULL(MAX(ver), 0)", "IFNULL(MAX(last_deletion_ver), 0)").
		From("roster_versions").
		Where(sq.Eq{"username": username})

	var ver rostermodel.Version
	err := q.RunWith(r.db).QueryRowContext(ctx).Scan(&ver.Ver, &ver.DeletionVer)
	switch err {
	case nil:
		return ver, nil
	default:
		return rostermodel.Version{}, err
	}
}

func scanRosterItemEntity(ri *rostermodel.Item, scanner rowScanner) error {
	var groups string
	if err := scanner.Scan(&ri.Username, &ri.JID, &ri.Name, &ri.Subscription, &groups, &ri.Ask, &ri.Ver); err != nil {
		return err
	}
	if len(groups) > 0 {
		ri.Groups = strings.Split(groups, ";")
	}
	return nil
}
