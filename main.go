package main

import (
	"github.com/subsquid/archive-gateway/cmd"
)

func main() {
	cmd.Execute()
}
