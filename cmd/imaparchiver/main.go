package main

import "aaronromeo.com/imaparchiver/internal/cli"

func main() {
	cli.Execute()
}
