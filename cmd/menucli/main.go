package main

import "menu-recommender/internal/cli"

func main() {
	cli.Execute()
}
