package main

import "github.com/agentfactory/loopkit/cmd"

func main() {
	cmd.Execute()
}
