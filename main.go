package main

import "github.com/josephlewis42/lxfsh/cmd"

func main() {
	cmd.Execute()
}
