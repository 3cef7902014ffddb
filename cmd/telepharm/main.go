package main

import (
	"os"

	"github.com/amanuel-c/telepharm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
