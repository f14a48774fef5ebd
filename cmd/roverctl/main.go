// roverctl drives the rover peripherals from the command line.
//
// Every subcommand opens the board described by the environment (or the
// --config/--board flags), initialises it, runs one operation, prints the
// result and shuts the board down again.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
