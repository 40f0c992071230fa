package main

import "mspro-labs/catalog-scraper/cmd"

func main() {
	cmd.Execute()
}
