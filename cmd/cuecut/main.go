package main

import (
	"os"

	"cuecut/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
