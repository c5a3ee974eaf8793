package main

import "github.com/mcoot/blazers/internal/cli"

func main() {
	cli.Execute()
}
