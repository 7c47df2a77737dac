/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql" // SQL driver
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/storage/repository"
)

var nowExpr = sq.Expr("NOW()")

// Config represents MySQL storage configuration.
type Config struct {
	Host     string
	User     string
	Password string
	Database string
	PoolSize int
}

type mySQLContainer struct {
	user    *mySQLUser
	offline *mySQLOffline
	vCard   *mySQLVCard
	priv    *mySQLPrivate
	roster  *mySQLRoster
	caps    *mySQLCapabilities

	h      *sql.DB
	doneCh chan chan bool
}

// New initializes MySQL storage and returns associated container.
func New(cfg *Config) (repository.Container, error) {
	var err error
	c := &mySQLContainer{doneCh: make(chan chan bool, 1)}

	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Host, cfg.Database)
	c.h, err = sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	c.h.SetMaxOpenConns(cfg.PoolSize)

	if err := c.h.Ping(); err != nil {
		return nil, err
	}
	go c.loop()

	c.user = newUser(c.h)
	c.offline = newOffline(c.h)
	c.vCard = newVCard(c.h)
	c.priv = newPrivate(c.h)
	c.roster = newRoster(c.h)
	c.caps = newCapabilities(c.h)

	return c, nil
}

func (c *mySQLContainer) User() repository.User                 { return c.user }
func (c *mySQLContainer) Offline() repository.Offline           { return c.offline }
func (c *mySQLContainer) VCard() repository.VCard               { return c.vCard }
func (c *mySQLContainer) Private() repository.Private           { return c.priv }
func (c *mySQLContainer) Roster() repository.Roster             { return c.roster }
func (c *mySQLContainer) Capabilities() repository.Capabilities { return c.caps }

func (c *mySQLContainer) Close(ctx context.Context) error {
	ch := make(chan bool)
	c.doneCh <- ch
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *mySQLContainer) loop() {
	tc := time.NewTicker(time.Second * 15)
	defer tc.Stop()

	for {
		select {
		case <-tc.C:
			if err := c.h.Ping(); err != nil {
				log.Error(err)
			}
		case ch := <-c.doneCh:
			if err := c.h.Close(); err != nil {
				log.Error(err)
			}
			close(ch)
			return
		}
	}
}

type mySQLStorage struct {
	db *sql.DB
}

func newStorage(db *sql.DB) *mySQLStorage {
	return &mySQLStorage{db: db}
}

func (s *mySQLStorage) inTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
