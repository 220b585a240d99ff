package main

import (
	"fmt"
	"os"

	"github.com/nvr-ai/go-mh/benches"
	"github.com/nvr-ai/go-mh/benchmark"
	"github.com/nvr-ai/go-mh/cli"
)

func main() {
	reg := benchmark.NewRegistry()
	if err := benches.Register(reg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	reg.Seal()

	os.Exit(cli.Execute(reg))
}
