// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"os"
	"runtime"

	"github.com/okapi3d/okapi/cmd/okapi/commands"
)

func init() {
	// SDL and the graphics drivers want the main thread.
	runtime.LockOSThread()
}

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
