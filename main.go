package main

import "nosql-labs/cmd"

func main() {
	cmd.Execute()
}
