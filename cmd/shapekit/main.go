// Package main is the entry point for the shapekit CLI.
package main

func main() {
	Execute()
}
