package main

import "github.com/mcoot/tablebank/internal/cli"

func main() {
	cli.Execute()
}
