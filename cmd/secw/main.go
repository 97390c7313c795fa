package main

import "github.com/espitsyna/ext-security-advisor/cmd"

func main() {
	cmd.Execute()
}
