package main

import (
	"context"
	"fmt"
	"os"
	"waterbills-backend/lib/serviceutil"
	"waterbills-backend/lib/waterbill"
	"waterbills-backend/services/waterbilling"

	"github.com/jedib0t/go-pretty/v6/table"
)

// runOnce scrapes one credential and renders the result to stdout, a
// dev loop for poking at the portals without standing up the server.
func runOnce(ctx context.Context, service *waterbilling.Service, provider, user, pass string) {
	if user == "" || pass == "" {
		serviceutil.Fatal("-once requires -user and -pass", fmt.Errorf("missing credentials"))
	}

	result, err := service.ListAccountsWithBills(ctx, waterbill.Credential{
		Provider: waterbill.Provider(provider),
		Username: user,
		Password: pass,
	})
	if err != nil {
		serviceutil.Fatal("scrape failed", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Account", "Name", "Address", "Amount", "Period", "Document"})
	for _, s := range result.Services {
		period := ""
		document := "no"
		if s.Document != nil {
			period = s.Document.BillingPeriod
			document = fmt.Sprintf("%d bytes", len(s.Document.Data))
		}
		t.AppendRow(table.Row{
			s.ExternalID, s.Names, s.Address,
			fmt.Sprintf("%.2f", s.Amount), period, document,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(result.Failures) > 0 {
		f := table.NewWriter()
		f.SetOutputMirror(os.Stdout)
		f.AppendHeader(table.Row{"Account", "Error"})
		for _, failure := range result.Failures {
			f.AppendRow(table.Row{failure.ExternalID, failure.Err.Error()})
		}
		f.SetStyle(table.StyleRounded)
		f.Render()
	}
}
