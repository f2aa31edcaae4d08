package main

import (
	"fmt"
	"os"

	"github.com/mychat/chatlink/cmd/chatlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
