// Package main provides the entry point for the spider CLI.
//
// spider downloads every image referenced by a web page and, with -r, by
// the pages it links to, up to a depth limit.
//
// Usage:
//
//	spider [-r] [-l depth] [-p path] URL
//	spider history
//	spider inspect FILE...
//
// See --help for all available options.
package main

// main is the entry point for spider.
func main() {
	Execute()
}
