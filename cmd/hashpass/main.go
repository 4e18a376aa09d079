// Command hashpass prints the bcrypt hash of a password for use as the
// ADMIN_PASS_HASH environment variable.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/venuekit/seat-inventory/internal/utils"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: hashpass <password> [cost]")
		os.Exit(2)
	}
	cost := 12
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid cost %q\n", os.Args[2])
			os.Exit(2)
		}
		cost = n
	}
	hash, err := utils.HashPassword(os.Args[1], cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
