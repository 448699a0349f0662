package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/seedprune/internal/config"
	"github.com/blackwell-systems/seedprune/internal/output"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [announce-url...]",
	Short: "Show tracker rules or which rule applies to a URL",
	Long: `Without arguments, list the tracker rules in the order they are tried,
followed by the default policy. The longest match key wins; keys of equal
length are tried in lexical order.

With announce URLs, show the rule and thresholds each URL resolves to.`,
	Example: `  # List rules
  seedprune rules

  # Which rule applies to this tracker?
  seedprune rules https://landof.tv/announce/abc123`,
	RunE: runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	policies, err := cfg.PolicyStore()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		fmt.Fprintf(out, "Rules from %s\n\n", configSourceName(cfg))
		fmt.Fprint(out, output.RenderRuleTable(policies.Rules(), policies.Default()))
		return nil
	}

	matches := make([]output.PolicyMatch, 0, len(args))
	for _, url := range args {
		m := output.PolicyMatch{URL: url, Policy: policies.Default()}
		if rule, ok := policies.Match([]string{url}); ok {
			m.MatchKey = rule.MatchKey
			m.Policy = rule.Policy
		}
		matches = append(matches, m)
	}
	fmt.Fprint(out, output.RenderPolicyMatches(matches))
	return nil
}

func configSourceName(cfg *config.Config) string {
	if cfg.Source == "" {
		return "built-in defaults"
	}
	return cfg.Source
}
