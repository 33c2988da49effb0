package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/leonardcser/kvcache/internal/command"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	app := command.InitApp(os.Stdout)
	err := app.Run(context.Background(), os.Args)
	if err != nil && !errors.Is(err, command.ErrMiss) {
		fmt.Fprintln(os.Stderr, err)
	}
	return command.ExitCode(err)
}
