// Command postq runs the search box interpreter and highlighter from a
// terminal, without a database. It is meant for checking how a query will
// be understood and what it will mark in a piece of text.
//
// Usage:
//
//	postq parse 'category:Intel Quick Updates "traffic stop" mine:true'
//	postq highlight --query '"traffic stop" border' < post.txt
//	postq count --query cat 'category and cat'
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
