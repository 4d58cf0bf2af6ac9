package main

import (
	"log"

	"cratefm/cmd"
)

func main() {
	cmd.Execute()
	// If Execute() had a problem, Cobra would have called os.Exit.
	log.Println("Command execution finished.")
}
