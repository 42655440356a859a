package main

import (
	"log"

	"gitvanity/cmd/gitvanity/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
