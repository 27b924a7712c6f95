package main

import "localfarmer/cmd/migration/commands"

func main() {
	commands.Execute()
}
