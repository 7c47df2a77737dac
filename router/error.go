/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package router

import "github.com/pkg/errors"

var (
	// ErrNotExistingAccount will be returned by Route method
	// if destination user does not exist.
	ErrNotExistingAccount = errors.New("router: account does not exist")

	// ErrResourceNotFound will be returned by Route method
	// if destination resource does not match any of user's available resources.
	ErrResourceNotFound = errors.New("router: resource not found")

	// ErrNotAuthenticated will be returned by Route method if
	// destination user is not available at this moment.
	ErrNotAuthenticated = errors.New("router: user not authenticated")

	// ErrFailedRemoteConnect will be returned by Route method if
	// couldn't establish a connection to the remote server.
	ErrFailedRemoteConnect = errors.New("router: failed remote connection")

	// ErrRestrictedResource will be returned when trying to bind
	// a resource carrying a restricted prefix.
	ErrRestrictedResource = errors.New("router: restricted resource")

	// ErrResourceReserved will be returned when trying to reserve
	// a resource some other stream is currently binding.
	ErrResourceReserved = errors.New("router: resource reserved")
)
