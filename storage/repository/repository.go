/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package repository

import (
	"context"

	"github.com/jabberwock-im/jabberwock/model"
	"github.com/jabberwock-im/jabberwock/model/rostermodel"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

// User defines user repository operations.
type User interface {
	// UpsertUser inserts a new user entity into storage,
	// or updates it in case it's been previously inserted.
	UpsertUser(ctx context.Context, user *model.User) error

	// DeleteUser deletes a user entity from storage.
	DeleteUser(ctx context.Context, username string) error

	// FetchUser retrieves from storage a user entity.
	FetchUser(ctx context.Context, username string) (*model.User, error)

	// UserExists tells whether or not a user exists within storage.
	UserExists(ctx context.Context, username string) (bool, error)
}

// Offline defines storage operations for offline messages.
type Offline interface {
	// InsertOfflineMessage inserts a new message element into user's offline queue.
	InsertOfflineMessage(ctx context.Context, message *xmpp.Message, username string) error

	// CountOfflineMessages returns current length of user's offline queue.
	CountOfflineMessages(ctx context.Context, username string) (int, error)

	// FetchOfflineMessages retrieves from storage current user offline queue.
	FetchOfflineMessages(ctx context.Context, username string) ([]xmpp.Message, error)

	// DeleteOfflineMessages clears a user offline queue.
	DeleteOfflineMessages(ctx context.Context, username string) error
}

// VCard defines storage operations for vCards.
type VCard interface {
	// UpsertVCard inserts a new vCard element into storage,
	// or updates it in case it's been previously inserted.
	UpsertVCard(ctx context.Context, vCard xmpp.XElement, username string) error

	// FetchVCard retrieves from storage a vCard element associated to a given user.
	FetchVCard(ctx context.Context, username string) (xmpp.XElement, error)
}

// Private defines operations for private storage.
type Private interface {
	// FetchPrivateXML retrieves from storage a private element.
	FetchPrivateXML(ctx context.Context, namespace string, username string) ([]xmpp.XElement, error)

	// UpsertPrivateXML inserts a new private element into storage,
	// or updates it in case it's been previously inserted.
	UpsertPrivateXML(ctx context.Context, privateXML []xmpp.XElement, namespace string, username string) error
}

// Roster defines storage operations for user's roster.
type Roster interface {
	// UpsertRosterItem inserts a new roster item entity into storage,
	// or updates it in case it's been previously inserted.
	UpsertRosterItem(ctx context.Context, ri *rostermodel.Item) (rostermodel.Version, error)

	// DeleteRosterItem deletes a roster item entity from storage.
	DeleteRosterItem(ctx context.Context, username, jid string) (rostermodel.Version, error)

	// FetchRosterItems retrieves from storage all roster item entities
	// associated to a given user.
	FetchRosterItems(ctx context.Context, username string) ([]rostermodel.Item, rostermodel.Version, error)

	// FetchRosterItem retrieves from storage a roster item entity.
	FetchRosterItem(ctx context.Context, username, jid string) (*rostermodel.Item, error)
}

// Capabilities defines storage operations for entity capabilities.
type Capabilities interface {
	// UpsertCapabilities inserts capabilities associated to a node+ver pair,
	// or updates them if previously inserted.
	UpsertCapabilities(ctx context.Context, caps *model.Capabilities) error

	// FetchCapabilities fetches capabilities associated to a given node and ver.
	FetchCapabilities(ctx context.Context, node, ver string) (*model.Capabilities, error)
}

// Container interface brings together all repository instances.
type Container interface {
	// User method returns repository.User concrete implementation.
	User() User

	// Offline method returns repository.Offline concrete implementation.
	Offline() Offline

	// VCard method returns repository.VCard concrete implementation.
	VCard() VCard

	// Private method returns repository.Private concrete implementation.
	Private() Private

	// Roster method returns repository.Roster concrete implementation.
	Roster() Roster

	// Capabilities method returns repository.Capabilities concrete implementation.
	Capabilities() Capabilities

	// Close closes underlying storage resources, commonly shared across repositories.
	Close(ctx context.Context) error
}
