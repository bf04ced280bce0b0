package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/starterkit/starter/internal/client"
	"github.com/starterkit/starter/pkg/metadata"
)

var (
	stepsURL    string
	stepsOutput string
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the options exposed by the service",
	Long: `List every step of the service metadata with its type, default and
available values. Step names are the keys accepted by --set, presets and
the defaults section of the configuration.

Examples:
  starter steps
  starter steps -o yaml
  starter steps --url http://localhost:8080 -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("url") {
			viper.Set("url", stepsURL)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		c := client.New(
			client.WithTimeout(viper.GetDuration("timeout")),
			client.WithUserAgent("starter/"+Version),
			client.WithLogger(GetLogger()),
		)
		steps, err := loadSteps(ctx, c, viper.GetString("url"))
		if err != nil {
			return err
		}
		return printSteps(cmd.OutOrStdout(), steps, stepsOutput)
	},
}

type stepView struct {
	Name    string       `json:"name" yaml:"name"`
	Type    string       `json:"type" yaml:"type"`
	Default string       `json:"default,omitempty" yaml:"default,omitempty"`
	Values  []optionView `json:"values,omitempty" yaml:"values,omitempty"`
}

type optionView struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Group  string `json:"group,omitempty" yaml:"group,omitempty"`
	Action string `json:"action,omitempty" yaml:"action,omitempty"`
}

func toViews(steps []metadata.Step) []stepView {
	return lo.Map(steps, func(s metadata.Step, _ int) stepView {
		return stepView{
			Name:    s.Name,
			Type:    s.TypeName(),
			Default: s.Default(),
			Values: lo.Map(s.Items(), func(it metadata.Item, _ int) optionView {
				return optionView{ID: it.ID, Name: it.DisplayName, Group: it.Group, Action: it.Action}
			}),
		}
	})
}

func printSteps(w io.Writer, steps []metadata.Step, format string) error {
	switch format {
	case "", "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "NAME\tTYPE\tDEFAULT\tVALUES")
		for _, s := range steps {
			ids := lo.Map(s.Items(), func(it metadata.Item, _ int) string { return it.ID })
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.TypeName(), s.Default(), summarize(ids, 6))
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(toViews(steps))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toViews(steps)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format: %s (supported: table, json, yaml)", format)
	}
}

// summarize joins at most limit ids and counts the rest.
func summarize(ids []string, limit int) string {
	if len(ids) <= limit {
		return strings.Join(ids, ",")
	}
	return fmt.Sprintf("%s,... (+%d)", strings.Join(ids[:limit], ","), len(ids)-limit)
}

func init() {
	rootCmd.AddCommand(stepsCmd)

	stepsCmd.Flags().StringVar(&stepsURL, "url", client.DefaultBaseURL, "base URL of the Initializr service")
	stepsCmd.Flags().StringVarP(&stepsOutput, "output", "o", "table", "output format: table|json|yaml")
}
