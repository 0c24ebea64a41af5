package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pressly/goose/v3"
)

func run(ctx context.Context, provider *goose.Provider, command string) error {
	switch command {
	case "down":
		res, err := provider.Down(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("rolled back %d (%s) in %s\n", res.Source.Version, res.Source.Path, res.Duration)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tSOURCE")
		for _, st := range statuses {
			applied := "-"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
		}
		return w.Flush()
	case "version":
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Println(version)
	}
	return nil
}
