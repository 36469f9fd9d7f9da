package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

// VersionInfo describes the build.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				OS:        runtime.GOOS,
				Arch:      runtime.GOARCH,
			}
			if c.jsonOutput {
				return c.outputJSON(info)
			}
			c.println("sqlgazer")
			c.printf("  Version:    %s\n", info.Version)
			c.printf("  Git Commit: %s\n", info.GitCommit)
			c.printf("  Build Date: %s\n", info.BuildDate)
			c.printf("  Go Version: %s\n", info.GoVersion)
			c.printf("  OS/Arch:    %s/%s\n", info.OS, info.Arch)
			return nil
		},
	}
}
