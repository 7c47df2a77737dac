/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package rostermodel

import (
	"fmt"
)

// Version represents a roster version value.
type Version struct {
	Ver         int
	DeletionVer int
}

// String returns a string representation of a roster version.
func (rv *Version) String() string {
	return fmt.Sprintf("v%d", rv.Ver)
}
