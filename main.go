package main

import "github.com/nsxzhou1114/blog-comment/cmd"

func main() {
	cmd.Execute()
}
