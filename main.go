package main

import cmd "github.com/rohmanhakim/threadwatch/internal/cli"

func main() {
	cmd.Execute()
}
