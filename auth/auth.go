/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package auth

import (
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"

	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/bus/inproc"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/model"
	"github.com/jabberwock-im/jabberwock/storage/repository"
)

// Authenticator answers credential checks posted on the application
// bus, validating them against the user repository. External
// authentication backends may replace it by registering their own
// handler for the same operation.
type Authenticator struct {
	userRep repository.User
}

// New returns an initialized repository backed authenticator.
func New(userRep repository.User) *Authenticator {
	return &Authenticator{userRep: userRep}
}

// RegisterHandlers attaches the authenticator to an in-process bus.
func (a *Authenticator) RegisterHandlers(b *inproc.Bus) {
	b.RegisterHandler(bus.UserAuth, a.HandleUserAuth)
	b.RegisterHandler(bus.UserRegister, a.HandleUserRegister)
}

// HandleUserAuth validates a digest or plain password credential.
// The digest credential is hex(SHA1(streamID+password)).
func (a *Authenticator) HandleUserAuth(ctx context.Context, msg *bus.Message) (*bus.Response, error) {
	username := msg.Param("username")
	streamID := msg.Param("stream")

	resp := &bus.Response{Handled: true, Params: map[string]string{"authenticated": "false"}}

	usr, err := a.userRep.FetchUser(ctx, username)
	if err != nil {
		log.Errorf("failed to fetch user: %v (username: %s)", err, username)
		return resp, nil
	}
	if usr == nil {
		return resp, nil
	}
	var ok bool
	if digest := msg.Param("digest"); len(digest) > 0 {
		ok = verifyDigest(digest, streamID, usr.Password)
	} else if password := msg.Param("password"); len(password) > 0 {
		ok = subtle.ConstantTimeCompare([]byte(password), []byte(usr.Password)) == 1
	}
	if ok {
		resp.Params["authenticated"] = "true"
	}
	return resp, nil
}

// HandleUserRegister creates a user account requested through in-band
// registration. Account update and removal notifications ride the same
// operation but carry a different "operation" parameter and are left
// for other subscribers.
func (a *Authenticator) HandleUserRegister(ctx context.Context, msg *bus.Message) (*bus.Response, error) {
	if msg.Param("operation") != "create" {
		return nil, nil
	}
	username := msg.Param("username")
	password := msg.Param("password")

	resp := &bus.Response{Handled: true, Params: map[string]string{"created": "false"}}

	if len(username) == 0 || len(password) == 0 {
		return resp, nil
	}
	exists, err := a.userRep.UserExists(ctx, username)
	if err != nil {
		log.Errorf("failed to check user existence: %v (username: %s)", err, username)
		return resp, nil
	}
	if exists {
		return resp, nil
	}
	usr := &model.User{Username: username, Password: password}
	if err := a.userRep.UpsertUser(ctx, usr); err != nil {
		log.Errorf("failed to register user: %v (username: %s)", err, username)
		return resp, nil
	}
	resp.Params["created"] = "true"
	return resp, nil
}

func verifyDigest(digest, streamID, password string) bool {
	sum := sha1.Sum([]byte(streamID + password))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(digest), []byte(expected)) == 1
}
