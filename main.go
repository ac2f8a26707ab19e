// The main package for the prospector executable.
package main

import (
	"github.com/fintelworks/prospector/cmd"
)

func main() {
	cmd.Execute()
}
