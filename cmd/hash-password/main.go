// Command hash-password prints the bcrypt hash of a password, for writing
// admin accounts into users.json by hand.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
)

func main() {
	var password string
	flag.StringVar(&password, "password", "", "password to hash; read from stdin when empty")
	flag.Parse()

	if password == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			slog.Error("read password from stdin", slog.String("error", err.Error()))
			os.Exit(1)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		slog.Error("password is empty")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.Error("hash failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Println(hash)
}
