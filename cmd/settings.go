package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/example/badgerwatch/internal/store"
	"github.com/spf13/cobra"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the term, phone numbers and API key",
	}
	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsSetCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			cfg, err := client.Settings(context.Background())
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	var (
		termCode string
		termName string
		phones   string
		addPhone []string
		apiKey   string
	)

	c := &cobra.Command{
		Use:   "set",
		Short: "Change settings; flags that are not given keep their value",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			ctx := context.Background()
			cfg, err := client.Settings(ctx)
			if err != nil {
				return err
			}

			f := cmd.Flags()
			if f.Changed("term-code") {
				cfg.Term = store.Term{Code: termCode}
			}
			if f.Changed("term-name") {
				cfg.Term.Name = termName
			}
			if f.Changed("phones") {
				cfg.PhoneNumbers = splitCSV(phones)
			}
			cfg.PhoneNumbers = append(cfg.PhoneNumbers, addPhone...)
			if f.Changed("api-key") {
				cfg.APIKey = apiKey
			}

			saved, err := client.SaveSettings(ctx, cfg)
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), saved)
			return nil
		},
	}

	c.Flags().StringVar(&termCode, "term-code", "", "term code, e.g. 1262")
	c.Flags().StringVar(&termName, "term-name", "", "term name (default: looked up from the code)")
	c.Flags().StringVar(&phones, "phones", "", "comma separated phone numbers or iMessage addresses; replaces the list")
	c.Flags().StringArrayVar(&addPhone, "add-phone", nil, "append one phone number (repeatable)")
	c.Flags().StringVar(&apiKey, "api-key", "", "grades API key (empty restores the default)")
	return c
}

func printSettings(out io.Writer, cfg store.Config) {
	fmt.Fprintf(out, "term:    %s (%s)\n", cfg.Term.Name, cfg.Term.Code)
	if len(cfg.PhoneNumbers) == 0 {
		fmt.Fprintln(out, "phones:  none")
	} else {
		fmt.Fprintf(out, "phones:  %s\n", strings.Join(cfg.PhoneNumbers, ", "))
	}
	key := cfg.APIKey
	if key == store.DefaultAPIKey {
		key += " (default)"
	}
	fmt.Fprintf(out, "api key: %s\n", key)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
