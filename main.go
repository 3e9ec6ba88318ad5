package main

import "github.com/everkeep/everkeep/cmd"

func main() {
	cmd.Execute()
}
