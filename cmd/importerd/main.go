package main

import (
	"fmt"
	"os"

	"github.com/breakingdawnisback/Job-Importer/cmd/importerd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
