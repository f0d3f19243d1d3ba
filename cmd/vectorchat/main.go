package main

import "vectorchat/internal/cli"

func main() {
	cli.Execute()
}
