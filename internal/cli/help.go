package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

var (
	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true)
)

// StyledHelpPrinter renders kong help with the package styles.
func StyledHelpPrinter(_ kong.HelpOptions) kong.HelpPrinter {
	return func(_ kong.HelpOptions, ctx *kong.Context) error {
		node := ctx.Model.Node
		if sel := ctx.Selected(); sel != nil {
			node = sel
		}

		var sb strings.Builder
		sb.WriteString(TitleStyle.Render("soundplayer"))
		sb.WriteString("\n")
		if node.Help != "" {
			sb.WriteString(SubtitleStyle.Render(node.Help))
			sb.WriteString("\n")
		}

		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(node.Path() + " " + node.Summary())
		sb.WriteString("\n")

		if cmds := commandRows(node); len(cmds) > 0 {
			writeSection(&sb, "Commands:", cmds)
		}
		if args := argumentRows(node); len(args) > 0 {
			writeSection(&sb, "Arguments:", args)
		}
		writeSection(&sb, "Flags:", flagRows(node))

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

type helpRow struct {
	name, help, defaultVal string
}

func writeSection(sb *strings.Builder, title string, rows []helpRow) {
	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render(title))
	sb.WriteString("\n")
	for _, r := range rows {
		sb.WriteString("  ")
		sb.WriteString(helpFlagStyle.Render(r.name))
		if r.help != "" {
			sb.WriteString("  ")
			sb.WriteString(r.help)
		}
		if r.defaultVal != "" {
			sb.WriteString(" ")
			sb.WriteString(helpDefaultStyle.Render("(default: " + r.defaultVal + ")"))
		}
		sb.WriteString("\n")
	}
}

func commandRows(node *kong.Node) []helpRow {
	var rows []helpRow
	for _, c := range node.Children {
		if c.Hidden {
			continue
		}
		rows = append(rows, helpRow{name: c.Name, help: c.Help})
	}
	return rows
}

func argumentRows(node *kong.Node) []helpRow {
	rows := make([]helpRow, 0, len(node.Positional))
	for _, arg := range node.Positional {
		rows = append(rows, helpRow{name: arg.Summary(), help: arg.Help})
	}
	return rows
}

func flagRows(node *kong.Node) []helpRow {
	rows := []helpRow{{name: "-h, --help", help: "Show context-sensitive help."}}

	for _, f := range node.AllFlags(true) {
		for _, fl := range f {
			if fl.Name == "help" {
				continue
			}
			name := "--" + fl.Name
			if fl.Short != 0 {
				name = fmt.Sprintf("-%c, --%s", fl.Short, fl.Name)
			}
			if !fl.IsBool() && fl.PlaceHolder != "" {
				name += "=" + strings.ToUpper(fl.PlaceHolder)
			}

			defaultVal := ""
			if fl.HasDefault && !fl.IsBool() {
				defaultVal = fl.Default
			}
			rows = append(rows, helpRow{name: name, help: fl.Help, defaultVal: defaultVal})
		}
	}
	return rows
}
