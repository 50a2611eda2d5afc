// Command devtoken mints an access token for local testing against a server
// configured with the same JWT_SECRET.
//
//	devtoken -role student -id 12
//	devtoken -role organizer -ttl 8h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iliyamo/careerfair-reservation/internal/config"
	"github.com/iliyamo/careerfair-reservation/internal/model"
	"github.com/iliyamo/careerfair-reservation/internal/utils"
)

func main() {
	role := flag.String("role", "student", "student, company or organizer")
	id := flag.Int64("id", 0, "participant id (ignored for organizers)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	jc, err := config.LoadJWT()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	actor, err := model.ActorFromRole(*role, *id)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	tok, err := utils.NewAccessToken(jc.Secret, jc.Issuer, actor, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
