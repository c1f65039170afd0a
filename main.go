package main

import "github.com/deploymenttheory/ps3disc/cmd"

func main() {
	cmd.Execute()
}
