package cli

import (
	"github.com/spf13/cobra"

	"github.com/gazer-labs/sqlgazer/internal/analysis/rules"
)

func (c *CLI) newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the antipattern rules and current thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			type ruleInfo struct {
				Name        string `json:"name"`
				Description string `json:"description"`
				Enabled     bool   `json:"enabled"`
			}
			var infos []ruleInfo
			for _, r := range rules.All() {
				infos = append(infos, ruleInfo{
					Name:        r.Name,
					Description: r.Description,
					Enabled:     c.cfg.Rules.RuleEnabled(r.Name),
				})
			}

			if c.jsonOutput {
				return c.outputJSON(map[string]interface{}{
					"rules":                       infos,
					"large_table_row_count":       c.cfg.Rules.LargeTableRowCount,
					"distinct_function_row_count": c.cfg.Rules.DistinctFunctionRowCount,
					"big_date_range_days":         rules.BigDateRangeDays,
				})
			}

			c.printf("thresholds: large_table_row_count=%d distinct_function_row_count=%d big_date_range_days=%d\n\n",
				c.cfg.Rules.LargeTableRowCount, c.cfg.Rules.DistinctFunctionRowCount, rules.BigDateRangeDays)
			for _, info := range infos {
				mark := " "
				if !info.Enabled {
					mark = "(disabled)"
				}
				c.printf("%-32s %s %s\n", info.Name, info.Description, mark)
			}
			return nil
		},
	}
}
