// ./main.go
package main

import (
	"github.com/quantbarn/kitelogin/cmd"
)

// main is the entry point for the kitelogin application. Command parsing,
// configuration, and execution all live in the cmd package.
func main() {
	cmd.Execute()
}
