/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package main

import (
	"fmt"
	"os"

	"github.com/jabberwock-im/jabberwock/app"
)

func main() {
	instance := app.New(os.Stdout, os.Args)
	if err := instance.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "jabberwock: %v\n", err)
		os.Exit(-1)
	}
}
