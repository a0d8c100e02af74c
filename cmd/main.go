package main

import (
	cmd "safaridl/cmd/safaridl"
)

func main() {
	cmd.Execute()
}
