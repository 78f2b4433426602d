package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/tt-studio/console/internal/cli"
)

func cmdProfiles(_ context.Context, args []string) error {
	fs := newFlagSet("profiles", "profiles [add <name> --api-url URL | delete <name>]")
	apiURL := fs.String("api-url", "", "backend origin for the new profile")
	browserID := fs.String("browser-id", "", "browser id to reuse (default: generated)")
	caCert := fs.String("ca-cert", "", "CA certificate for a backend behind a private CA")
	noSSE := fs.Bool("no-sse", false, "poll for progress instead of using the event stream")
	setActive := fs.Bool("set-active", true, "make the new profile active")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch fs.Arg(0) {
	case "":
		return listProfiles()

	case "add":
		if fs.NArg() != 2 || *apiURL == "" {
			fs.Usage()
			return errUsage
		}
		p := &cli.Profile{Name: fs.Arg(1), APIURL: *apiURL, BrowserID: *browserID, CACert: *caCert}
		if *noSSE {
			off := false
			p.PreferSSE = &off
		}
		saved, err := cli.SaveProfile(p)
		if err != nil {
			return err
		}
		fmt.Printf("Saved profile %q (%s)\n", saved.Name, saved.APIURL)
		if *setActive {
			if err := cli.SetActive(saved.Name); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not set active profile: %v\n", err)
			} else {
				fmt.Printf("Active profile set to %q\n", saved.Name)
			}
		}
		return nil

	case "delete":
		if fs.NArg() != 2 {
			fs.Usage()
			return errUsage
		}
		if err := cli.DeleteProfile(fs.Arg(1)); err != nil {
			return err
		}
		fmt.Printf("Deleted profile %q\n", fs.Arg(1))
		return nil

	default:
		fs.Usage()
		return errUsage
	}
}

func listProfiles() error {
	profiles, err := cli.ListProfiles()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Println("No profiles found. Add one with: studioctl profiles add <name> --api-url <url>")
		return nil
	}

	active, _ := cli.GetActive()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tAPI URL\tBROWSER ID\tACTIVE")
	for _, p := range profiles {
		marker := ""
		if p.Name == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.APIURL, shortID(p.BrowserID), marker)
	}
	return w.Flush()
}

func cmdUse(_ context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: studioctl use <profile-name>")
		return errUsage
	}
	if err := cli.SetActive(args[0]); err != nil {
		return err
	}
	fmt.Printf("Active profile set to %q\n", args[0])
	return nil
}
