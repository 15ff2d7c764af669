// Package main provides the pricehistory CLI.
//
// Usage:
//
//	pricehistory scrape NABIL CBBL
//	pricehistory probe NABIL
//	pricehistory history --db runs.db
//
// See --help for all available options.
package main

func main() {
	Execute()
}
