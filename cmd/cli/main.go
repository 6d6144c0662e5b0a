package main

import (
	"github.com/mchmarny/pwgate/pkg/cli"
)

func main() {
	cli.Execute()
}
