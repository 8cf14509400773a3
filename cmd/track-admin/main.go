// Command track-admin is the operator CLI: admin bootstrap, role changes,
// and a guarded view of the tracking records.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	app, err := bootstrapTrackAdmin()
	if err != nil {
		fmt.Fprintln(os.Stderr, "track-admin:", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.cli.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "track-admin:", err)
		app.Close()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: track-admin <command> [flags]

commands:
  bootstrap-admin -email E -password P   create or reuse a user and make it admin
  set-role -email E -role R              change a user's role
  login -email E -password P             sign in and keep the token locally
  logout                                 sign out and clear the local token
  whoami                                 show the current session
  list                                   list tracking records (admin)
  delete -id N                           delete a tracking record (admin)`)
}
