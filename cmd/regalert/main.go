// Package main provides the CLI entrypoint for regalert.
package main

func main() {
	Execute()
}
