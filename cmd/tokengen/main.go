// Command tokengen mints gateway tokens for local testing and for
// provisioning the chat gateway.
//
//	tokengen -user 42 -role customer -ttl 24h
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/utils"
)

func main() {
	_ = godotenv.Load()

	defTTL := 24 * time.Hour
	if v := os.Getenv("ACCESS_TOKEN_TTL_MIN"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil && mins > 0 {
			defTTL = time.Duration(mins) * time.Minute
		}
	}

	user := flag.String("user", "", "platform user id (token subject)")
	role := flag.String("role", "customer", "customer, employee or administrator")
	ttl := flag.Duration("ttl", defTTL, "token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 secret, defaults to $JWT_SECRET")
	flag.Parse()

	r, ok := model.ParseRole(*role)
	if *user == "" || !ok {
		flag.Usage()
		os.Exit(2)
	}
	tok, err := utils.NewAccessToken(*secret, *user, string(r), *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tokengen:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
	fmt.Fprintln(os.Stderr, "expires", tok.Exp.Format(time.RFC3339))
}
