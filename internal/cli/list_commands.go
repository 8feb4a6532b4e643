// internal/cli/list_commands.go
package cardia

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// listCmd represents the 'list' command group.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Group commands for listing resources",
}

// commandsCmd implements 'list commands', which prints the available
// commands and subcommands in a hierarchical, indented, two-column format.
var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List all commands and subcommands in two columns",
	Long:  `The 'commands' subcommand lists all commands and subcommands in a hierarchical, indented format, with the command path in the first column and its short description in the second column.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runListCommands(cmd.OutOrStdout(), cmd.Root())
	},
}

func init() {
	listCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(listCmd)
}

// commandInfo holds the path and description of a command for display.
type commandInfo struct {
	path        string
	description string
}

// runListCommands prints the command tree in a two-column layout.
func runListCommands(out io.Writer, root *cobra.Command) {
	var rows []commandInfo
	for _, data := range collectCommandData(root, "", "") {
		if strings.Contains(data.path, "completion") || strings.Contains(data.path, " help") {
			continue
		}
		rows = append(rows, data)
	}

	width := 0
	for _, data := range rows {
		width = max(width, len(data.path))
	}

	fmt.Fprintln(out, "Commands and Subcommands:")
	for _, data := range rows {
		fmt.Fprintf(out, "  %s%s%s\n", data.path, strings.Repeat(" ", width-len(data.path)+2), data.description)
	}
}

// collectCommandData walks the command tree and returns a flattened slice of
// path/description pairs, indenting each level by two spaces.
func collectCommandData(cmd *cobra.Command, currentPath string, indent string) []commandInfo {
	fullPath := cmd.Name()
	if currentPath != "" {
		fullPath = currentPath + " " + cmd.Name()
	}

	all := []commandInfo{{path: indent + fullPath, description: cmd.Short}}
	for _, sub := range cmd.Commands() {
		all = append(all, collectCommandData(sub, fullPath, indent+"  ")...)
	}
	return all
}
