package main

import (
	"github.com/Clawue884/sidra-monitoring/pkg/cli"
)

func main() {
	cli.Execute()
}
