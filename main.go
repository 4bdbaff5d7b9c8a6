package main

import "github.com/wkalt/newsledger/cli/cmd"

func main() {
	cmd.Execute()
}
