/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/bounce/dispatch-gin/cmd"

func main() {
	cmd.Execute()
}
