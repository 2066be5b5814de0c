// Package main is the entry point for the previewd daemon.
// previewd plays short hover previews for album and track cards, fading
// between them, and publishes the matching visual state to its clients.
package main

func main() {
	Execute()
}
