package main

import "sessionq/cmd"

func main() {
	cmd.Execute()
}
