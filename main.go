package main

import (
	"os"

	"github.com/TFMV/echoview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
