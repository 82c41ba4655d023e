package main

import "southwinds.dev/microkv/cli/cmd"

func main() {
	cmd.Execute()
}
