// Package app assembles the coordinator's command line application.
package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/urfave/cli"

	"github.com/0xMiden/MultiSig/cli/server"
	"github.com/0xMiden/MultiSig/pkg/config"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "miden-multisig\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a coordinator instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "miden-multisig"
	ctl.Version = config.Version
	ctl.Usage = "Multisig transaction coordinator for the Miden network"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	return ctl
}
