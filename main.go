/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/mcengine/engine"
	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/testbed"
)

func main() {
	configPath := flag.String("config", "", "path of a TOML configuration file")
	frames := flag.Int("frames", 0, "stop after this many frames, 0 runs until interrupted")
	text := flag.String("text", "", "render this text instead of the built-in samples")
	flag.Parse()

	cfg := core.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = core.LoadConfig(*configPath); err != nil {
			core.LogFatal("failed to load configuration: %s", err)
		}
	}

	var tb *testbed.TestGame
	if *text != "" {
		tb = testbed.NewTestGame(*text)
	} else {
		tb = testbed.NewTestGame()
	}

	e, err := engine.New(cfg, tb.Game)
	if err != nil {
		core.LogFatal("failed to create engine: %s", err)
	}

	if err := e.Initialize(); err != nil {
		core.LogFatal("failed to initialize engine: %s", err)
	}

	// signal channel to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	// run engine
	runErr := e.Run(ctx, *frames)
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown failed: %s", err)
	}
	if runErr != nil {
		core.LogError("engine stopped: %s", runErr)
		os.Exit(1)
	}
}
