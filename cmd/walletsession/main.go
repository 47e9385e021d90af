package main

import "github.com/Digital-Defiance/walletsession/cmd/walletsession/cmd"

func main() {
	cmd.Execute()
}
