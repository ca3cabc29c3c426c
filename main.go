package main

import "diver/cmd"

func main() {
	cmd.Execute()
}
