// gtl-passwd prints the argon2id hash for admin.password_hash.
//
//	echo -n 'secret' | gtl-passwd
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/BearBump/GTLTrack/internal/services/auth"
)

func main() {
	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && password == "" {
		fmt.Fprintln(os.Stderr, "read password from stdin:", err)
		os.Exit(1)
	}
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		fmt.Fprintln(os.Stderr, "empty password")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password, auth.DefaultParams)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
