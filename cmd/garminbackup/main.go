package main

import "github.com/nordvik/garminbackup/internal/cli"

func main() {
	cli.Execute()
}
