package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/charmbracelet/fang"
	"github.com/client2login/cli/cmd"
)

// set via -ldflags at release time
var version = "dev"

func main() {
	cmd.SetMetadata(cmd.Metadata{Version: version})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := fang.Execute(ctx, cmd.Root(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}
