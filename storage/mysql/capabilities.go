/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/jabberwock-im/jabberwock/model"
)

type mySQLCapabilities struct {
	*mySQLStorage
}

func newCapabilities(db *sql.DB) *mySQLCapabilities {
	return &mySQLCapabilities{mySQLStorage: newStorage(db)}
}

// UpsertCapabilities inserts capabilities associated to a node+ver pair, or updates them if previously inserted.
func (c *mySQLCapabilities) UpsertCapabilities(ctx context.Context, caps *model.Capabilities) error {
	b, err := json.Marshal(caps.Features)
	if err != nil {
		return err
	}
	_, err = sq.Insert("capabilities").
		Columns("node", "ver", "features", "updated_at", "created_at").
		Values(caps.Node, caps.Ver, b, nowExpr, nowExpr).
		Suffix("ON DUPLICATE KEY UPDATE features = ?, updated_at = NOW()", b).
		RunWith(c.db).ExecContext(ctx)
	return err
}

// FetchCapabilities fetches capabilities associated to a given node and ver.
func (c *mySQLCapabilities) FetchCapabilities(ctx context.Context, node, ver string) (*model.Capabilities, error) {
	var b string
	err := sq.Select("features").From("capabilities").
		Where(sq.And{sq.Eq{"node": node}, sq.Eq{"ver": ver}}).
		RunWith(c.db).QueryRowContext(ctx).Scan(&b)
	switch err {
	case nil:
		var caps model.Capabilities
		caps.Node = node
		caps.Ver = ver
		if err := json.Unmarshal([]byte(b), &caps.Features); err != nil {
			return nil, err
		}
		return &caps, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}
