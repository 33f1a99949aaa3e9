package main

import "github.com/opensesh/sessionhub/cmd"

func main() {
	cmd.Execute()
}
