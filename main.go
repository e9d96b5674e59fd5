package main

import "item-highlighter/internal/cli"

func main() {
	cli.Execute()
}
