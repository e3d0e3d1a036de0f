package main

import "fastsearch/cmd"

func main() {
	cmd.Execute()
}
