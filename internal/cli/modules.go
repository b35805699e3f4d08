package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lifegraph/lifegraph/internal/loader"
)

// ModuleInfo is the listing view of one module.
type ModuleInfo struct {
	Name    string `json:"name"`
	Version int    `json:"version,omitempty"`
	States  int    `json:"states"`
	Remarks string `json:"remarks,omitempty"`
}

// NewModulesCommand creates the modules listing command.
func NewModulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "modules <module-dir>",
		Short:         "List modules in a directory",
		Long:          "Lists every module found in a directory with its version, state count, and remarks.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModules(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runModules(opts *RootOptions, moduleDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	lib, loadErrs := loader.LoadDirectory(moduleDir)
	if lib == nil {
		_ = formatter.Error(loadErrs[0].Error(), nil)
		return NewExitError(ExitCommandError, loadErrs[0].Error())
	}
	for _, err := range loadErrs {
		formatter.VerboseLog("skipping: %v", err)
	}

	infos := make([]ModuleInfo, 0, lib.Len())
	for _, name := range lib.Names() {
		supplier, _ := lib.Get(name)
		meta := supplier.Metadata()

		// State count requires the full parse; listing stays best-effort
		// if a module is malformed beyond its metadata.
		states := 0
		if def, err := supplier.Definition(); err == nil {
			states = len(def.States)
		}

		infos = append(infos, ModuleInfo{
			Name:    meta.Name,
			Version: meta.Version,
			States:  states,
			Remarks: strings.Join(meta.Remarks, " "),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}

	w := tabwriter.NewWriter(formatter.Writer, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tSTATES\tREMARKS")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", info.Name, info.Version, info.States, info.Remarks)
	}
	return w.Flush()
}
