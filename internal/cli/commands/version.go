package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cellsql/internal/cli/output"
)

// BuildInfo is the version stamp set at build time.
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display cellsql version and build information.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := NewCommandContextWithoutWorkspace(cmd).Renderer
			out := output.VersionOutput{
				Version:   info.Version,
				BuildDate: known(info.BuildDate),
				GitCommit: known(info.GitCommit),
				GoVersion: runtime.Version(),
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(out)
			}

			r.Println(fmt.Sprintf("cellsql v%s", out.Version))
			r.Println("Language views and catalog completion for notebook SQL cells")
			if out.BuildDate != "" {
				r.KeyValue("Built", out.BuildDate)
			}
			if out.GitCommit != "" {
				r.KeyValue("Commit", out.GitCommit)
			}
			r.KeyValue("Go", out.GoVersion)
			return nil
		},
	}
}

// known drops the "unknown" placeholder of unstamped builds.
func known(s string) string {
	if s == "unknown" {
		return ""
	}
	return s
}
