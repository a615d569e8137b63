package main

import (
	"os"

	pantrycmder "github.com/ladleworks/pantry/cmd/pantry"
)

func main() {
	cmd := pantrycmder.NewPantryCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
