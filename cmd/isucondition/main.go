package main

import "isucondition/internal/cli"

func main() {
	cli.Execute()
}
