package main

import "leakctl/cmd"

func main() {
	cmd.Execute()
}
