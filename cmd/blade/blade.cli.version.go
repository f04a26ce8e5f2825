package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.buildTime=..."
var (
	version   = ""
	commit    = ""
	buildTime = ""
)

// versionOutput represents JSON output for version
type versionOutput struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// versionsYAML represents the versions.yaml file structure
type versionsYAML struct {
	Project struct {
		Version string `yaml:"version"`
	} `yaml:"project"`
	Git struct {
		Commit string `yaml:"commit"`
	} `yaml:"git"`
	Build struct {
		Time string `yaml:"time"`
	} `yaml:"build"`
}

func (c *cli) versionCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   CmdNameVersion,
		Short: HelpVersionShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != OutputFormatText && format != OutputFormatJSON {
				return fail(ExitCodeUsageError, ErrMsgInvalidFormat, nil)
			}
			v := getVersionInfo()
			if format == OutputFormatJSON {
				jsonBytes, _ := json.MarshalIndent(v, "", "  ")
				fmt.Fprintln(c.stdout, string(jsonBytes))
				return nil
			}
			fmt.Fprintf(c.stdout, VersionTextTemplate+FmtNewline, v.Version, v.Commit, v.BuildTime, v.GoVersion)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, FlagFormat, FlagFormatShort, FlagDefaultFormat, HelpFlagFormat)
	return cmd
}

// getVersionInfo prefers link-time values and falls back to a versions.yaml
// in the working directory or its parents.
func getVersionInfo() versionOutput {
	v := versionOutput{
		Version:   VersionUnknown,
		Commit:    VersionUnknown,
		BuildTime: VersionUnknown,
		GoVersion: runtime.Version(),
	}

	for _, path := range []string{"versions.yaml", "../versions.yaml", "../../versions.yaml"} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var vy versionsYAML
		if err := yaml.Unmarshal(data, &vy); err != nil {
			continue
		}
		setIf(&v.Version, vy.Project.Version)
		setIf(&v.Commit, vy.Git.Commit)
		setIf(&v.BuildTime, vy.Build.Time)
		break
	}

	setIf(&v.Version, version)
	setIf(&v.Commit, commit)
	setIf(&v.BuildTime, buildTime)
	return v
}

func setIf(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
