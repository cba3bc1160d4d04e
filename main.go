package main

import (
	"github.com/sidkik/cpsync/cmd"
	"github.com/sidkik/cpsync/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
