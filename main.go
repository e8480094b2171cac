/*
Prisma renders a small scene through the Vulkan ray tracing pipeline,
shading every object with its own callable shader.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/prisma/engine"
	"github.com/spaghettifunk/prisma/engine/core"
)

func main() {
	configPath := flag.String("config", "prisma.toml", "path to the configuration file")
	flag.Parse()

	config, err := engine.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}
	core.SetLogLevel(config.LogLevel)

	app, err := engine.New(config)
	if err != nil {
		panic(err)
	}

	if err := app.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		<-sigCh
		_ = app.Shutdown()
	}()

	if err := app.Run(); err != nil {
		panic(err)
	}

	if err := app.Shutdown(); err != nil {
		panic(err)
	}
}
