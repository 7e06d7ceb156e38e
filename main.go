package main

import (
	"github.com/pulsecrm/pulse/cmd"
)

func main() {
	cmd.Execute()
}
