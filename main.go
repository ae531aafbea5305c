package main

import "tokenchat/cmd"

func main() {
	cmd.Execute()
}
