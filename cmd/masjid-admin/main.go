// Command masjid-admin manages operator accounts from the shell:
//
//	masjid-admin list
//	masjid-admin approve <phone>
//	masjid-admin revoke <phone>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"masjid/internal/auth"
	"masjid/internal/cli"
	"masjid/internal/config"
	"masjid/internal/log"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s list | approve <phone> | revoke <phone>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.DataBackend == "memory" {
		logger.Warn("DATA_BACKEND is memory; changes made here are not persisted")
	}
	res := cli.InitBackend(ctx, logger, cfg)
	defer res.Cleanup()

	// Tokens are never issued here; the secret only has to be non-empty.
	identity := auth.NewService(res.Store, auth.NewTokenManager(cfg.SessionSecret+"-admin-cli", time.Minute), auth.Config{
		CountryCode: cfg.DefaultCountryCode,
		AdminPhones: cfg.AdminPhones,
	})

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "list":
		err = list(ctx, identity)
	case "approve", "revoke":
		if flag.NArg() != 2 {
			usage()
			os.Exit(2)
		}
		err = setApproval(ctx, identity, flag.Arg(1), cmd == "approve")
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", log.FieldOperation, flag.Arg(0), log.FieldError, err)
		os.Exit(1)
	}
}

func list(ctx context.Context, identity *auth.Service) error {
	accounts, err := identity.ListAccounts(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tNAME\tPHONE\tAPPROVED\tADMIN\tCREATED")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\n",
			a.UID, a.Name, a.PhoneNumber, a.Approved, identity.IsAdmin(a.PhoneNumber),
			a.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func setApproval(ctx context.Context, identity *auth.Service, rawPhone string, approved bool) error {
	phone, err := identity.NormalizePhone(rawPhone)
	if err != nil {
		return err
	}
	acc, err := identity.FindByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("%s: %w", phone, err)
	}
	if err := identity.SetApproved(ctx, acc.UID, approved); err != nil {
		return err
	}
	fmt.Printf("%s (%s) approved=%t\n", acc.Name, acc.PhoneNumber, approved)
	return nil
}
