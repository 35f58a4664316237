package main

import "github.com/fastygo/taskboard/internal/cli"

func main() {
	cli.Execute()
}
