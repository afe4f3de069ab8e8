// Command simplemysql runs one statement through the query facade and prints
// the result as JSON.
//
//	simplemysql --url mysql://root@localhost/app rows "SELECT * FROM users WHERE age > :age" --param age=18
//	simplemysql val "SELECT COUNT(*) FROM users"
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
