// Command totpcode is a developer helper for the two-factor engine.
//
//	totpcode code <secret>          print the current code and seconds left
//	totpcode keygen                 print a new TWOFACTOR_TOTP_ENCRYPTION_KEY
//	totpcode token <user> [session] mint an hs256 bearer token (JWT_SECRET)
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MrEthical07/twofactor/internal/secretbox"
	"github.com/MrEthical07/twofactor/jwt"
	"github.com/MrEthical07/twofactor/otp"
	"github.com/MrEthical07/twofactor/session"
	"github.com/jonboulle/clockwork"
)

var errUsage = errors.New("usage: totpcode code <secret> | keygen | token <user> [session]")

func main() {
	if err := run(os.Args[1:], os.Stdout, clockwork.NewRealClock()); err != nil {
		fmt.Fprintln(os.Stderr, "totpcode:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, clock clockwork.Clock) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "code":
		if len(args) != 2 {
			return errUsage
		}
		now := clock.Now()
		left := otp.Period - time.Duration(now.Unix()%int64(otp.Period/time.Second))*time.Second
		fmt.Fprintf(out, "%s (%ds left)\n", otp.ComputeCode(args[1], now), int(left.Seconds()))
		return nil

	case "keygen":
		key, err := secretbox.GenerateKey(nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, key)
		return nil

	case "token":
		return token(args[1:], out, clock)
	}
	return errUsage
}

func token(args []string, out io.Writer, clock clockwork.Clock) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	issuer := fs.String("issuer", "twofactor", "iss claim")
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "hs256 signing secret")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	rest := fs.Args()
	if len(rest) < 1 || len(rest) > 2 {
		return errUsage
	}
	if *secret == "" {
		return errors.New("JWT_SECRET or -secret is required")
	}

	m, err := jwt.NewManager(jwt.Config{
		AccessTTL:     *ttl,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(*secret),
		Issuer:        *issuer,
		Clock:         clock,
	})
	if err != nil {
		return err
	}

	var (
		signed string
		subj   session.Subject
	)
	if len(rest) == 2 {
		subj = session.Subject{UserID: rest[0], SessionID: rest[1]}
		signed, err = m.Issue(subj)
	} else {
		signed, subj, err = m.IssueForUser(rest[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "subject: %s\n%s\n", subj, signed)
	return nil
}
