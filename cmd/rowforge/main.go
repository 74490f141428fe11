package main

import (
	"os"

	"github.com/rowforge/rowforge/cmd/rowforge/commands"
	"github.com/rowforge/rowforge/pkg/server"
)

// main runs the rowforge CLI. Exit codes follow the server error
// taxonomy: 0 success, 1 general error, 2 invalid flags or
// configuration, 7 store initialization or lock failures.
func main() {
	command := commands.NewCommand()

	if err := command.Execute(); err != nil {
		os.Exit(server.ExitCode(err))
	}
}
