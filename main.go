package main

import (
	"log"

	"github.com/flarebyte/crous-sync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
