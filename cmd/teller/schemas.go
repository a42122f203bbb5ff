package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var schemasCmd = &cobra.Command{
	Use:     "schemas",
	Aliases: []string{"operations"},
	Short:   "List the operation catalog",
	Long:    `Loads and validates the operation catalog, then prints every operation with its parameters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(cmd.Context(), cfg.Conversation.Catalog)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			specs := catalog.ToolSpecs()
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(specs)
		}

		for _, op := range catalog.List() {
			fmt.Fprintf(out, "%s\n  %s\n", op.Name, op.Description)
			for _, p := range op.Params {
				flag := ""
				if p.Required {
					flag = " (required)"
				}
				fmt.Fprintf(out, "    - %s: %s%s", p.Name, p.Kind, flag)
				if len(p.AllowedValues) > 0 {
					fmt.Fprintf(out, " [%s]", strings.Join(p.AllowedValues, ", "))
				}
				fmt.Fprintln(out)
			}
		}
		fmt.Fprintf(out, "\n%d operations\n", catalog.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemasCmd)
	schemasCmd.Flags().Bool("json", false, "Print the catalog as model tool definitions")
}
