package main

import "places-backend/cmd"

func main() {
	cmd.Execute()
}
