package main

import "github.com/tayloree/pricecli/cmd"

func main() {
	cmd.Execute()
}
