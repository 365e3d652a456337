// YNAB Portal CLI — инструмент командной строки для синхронизаций,
// отчётов и расписаний через HTTP API.
//
// Использование:
//
//	ynab [--api-url URL] [--token TOKEN] [--json] <command> [args] [flags]
//
// Команды:
//
//	sync      Синхронизация с YNAB
//	report    Отчёты
//	admin     Таблицы портала
//	run       Sync runs
//	schedule  Расписания синхронизаций
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/ynab-portal/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var token string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "ynab",
		Short:         "YNAB Portal CLI",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("YNAB_PORTAL_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL (env YNAB_PORTAL_URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("YNAB_PORTAL_TOKEN"), "API token (env YNAB_PORTAL_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, token) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewSyncCmd(clientFn, outputFn),
		cli.NewReportCmd(clientFn, outputFn),
		cli.NewAdminCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
