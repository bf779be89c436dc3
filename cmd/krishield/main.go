package main

import cmd "github.com/rohmanhakim/krishield/internal/cli"

func main() {
	cmd.Execute()
}
