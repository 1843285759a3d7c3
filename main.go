package main

import (
	"os"

	"github.com/msfocb/panicbutton/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
