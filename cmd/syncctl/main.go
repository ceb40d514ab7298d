// Command syncctl runs one-off sync jobs against the configured database
// and mints operator tokens for the operator API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
