package main

import "github.com/rlrs/libPLUMP/cmd"

func main() {
	cmd.Execute()
}
