package main

import "github.com/mvp-joe/usagegraph/internal/cli"

func main() {
	cli.Execute()
}
