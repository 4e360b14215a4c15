package main

import "github.com/capsule/tripoverview/cmd"

func main() {
	cmd.Execute()
}
