package main

import (
	"os"

	"hestonq.com/cmd/hestonctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
