package main

import (
	"github.com/AlexVialaBellander/flower/cmd/cli"
)

func main() {
	cli.Execute()
}
