package main

import "github.com/npcchatter/backend/cmd/cli"

func main() {
	cli.Execute()
}
