package main

import "grimm.is/policyctl/cmd"

func main() {
	cmd.Execute()
}
