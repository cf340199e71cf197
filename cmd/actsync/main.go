// Command actsync keeps a local cache of a site's activity log in sync
// with the remote API.
package main

import (
	"context"
	"os"

	"github.com/roach88/actsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
