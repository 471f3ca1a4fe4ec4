// Package main is the entry point for the paramkit CLI and server.
package main

func main() {
	Execute()
}
