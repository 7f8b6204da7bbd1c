package main

import (
	"os"

	"github.com/declara-dev/declara/internal/commands"
)

func main() {
	os.Exit(commands.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
