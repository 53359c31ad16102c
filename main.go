package main

import (
	"github.com/staffapply/staffapply/cmd"
)

func main() {
	cmd.Execute()
}
