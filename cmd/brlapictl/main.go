// brlapictl is the operator CLI for the brlapid daemon's admin HTTP API.
package main

import "github.com/dantte-lp/brlapid/cmd/brlapictl/commands"

func main() {
	commands.Execute()
}
