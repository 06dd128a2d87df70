package main

import (
	"log"
	"os"

	"spbackup/cmd"
	"spbackup/config"
)

func main() {
	cnf, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration " + err.Error())
	}
	if err := cmd.Execute(cnf); err != nil {
		log.Printf("Failed to execute command " + err.Error())
		os.Exit(1)
	}
}
