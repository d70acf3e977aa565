package main

import "github.com/lepinkainen/rats/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
