package main

import "fmt"

// version is overridden at release time via -ldflags.
var version = "dev"

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (VersionCmd) Run(*Globals) error {
	fmt.Println("autorefs", version)
	return nil
}
