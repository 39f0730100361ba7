package main

import (
	"os"

	"github.com/dirauthd/dirauthd/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
