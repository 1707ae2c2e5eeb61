package main

import "github.com/ValentinKolb/rcq/cmd"

func main() {
	cmd.Execute()
}
