package main

import (
	"os"

	"github.com/MeKo-Tech/formflow/cmd/formflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
