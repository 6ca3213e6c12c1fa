// Package main prints the bcrypt hash of an admin token for auth.admin_token_hash.
// The server keeps only the hash, so this is how a stable admin token is configured.
//
//	hash <token>      hash the given token
//	hash -generate    generate a random token and print it with its hash
package main

import (
	"fmt"
	"os"

	"github.com/recordstore/recordstore/internal/auth"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <token> | -generate\n", os.Args[0])
		os.Exit(2)
	}

	if os.Args[1] == "-generate" {
		token, hash, err := auth.GenerateAdminToken()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("token: %s\nhash:  %s\n", token, hash)
		return
	}

	hash, err := auth.HashAdminToken(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
