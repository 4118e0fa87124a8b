// The main package for the signalfold executable.
package main

import (
	"github.com/signalfold/signalfold/cmd"
)

func main() {
	cmd.Execute()
}
