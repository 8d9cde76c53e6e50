package main

import "imageroller/cmd"

func main() {
	cmd.Execute()
}
