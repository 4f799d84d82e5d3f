package main

import (
	"os"

	"github.com/CodeMonkeyCybersecurity/hera/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
