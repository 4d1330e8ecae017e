package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Printer provides methods for printing UI components to a writer.
// This is the primary way devtree commands should output styled content.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Print(NewHeader(title, command, params).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.Print(RenderSuccessBox(title, details, p.width))
	p.Newline()
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Print(RenderErrorBox(title, err, troubleshooting, p.width))
	p.Newline()
}

// PrintDeviceLine prints one device listing line
func (p *Printer) PrintDeviceLine(subsystem, syspath, devnode string) {
	p.Println(RenderDeviceLine(subsystem, syspath, devnode))
}

// PrintProperties prints a sorted key/value property table
func (p *Printer) PrintProperties(props map[string]string) {
	p.Print(RenderPropertyTable(props))
}

// RenderDeviceLine renders one device listing line with an aligned
// subsystem tag.
func RenderDeviceLine(subsystem, syspath, devnode string) string {
	var b strings.Builder
	b.WriteString(SubsystemStyle.Render(fmt.Sprintf("%-10s", subsystem)))
	b.WriteString(" ")
	b.WriteString(SyspathStyle.Render(syspath))
	if devnode != "" {
		b.WriteString(" ")
		b.WriteString(DevnodeStyle.Render("(" + devnode + ")"))
	}
	return b.String()
}

// RenderPropertyTable renders device properties as aligned key/value
// lines, sorted by key.
func RenderPropertyTable(props map[string]string) string {
	keys := make([]string, 0, len(props))
	maxLen := 0
	for k := range props {
		keys = append(keys, k)
		if len(k) > maxLen {
			maxLen = len(k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(PropertyKeyStyle.Render(fmt.Sprintf("%-*s", maxLen+1, k+":")))
		b.WriteString(" ")
		b.WriteString(PropertyValueStyle.Render(props[k]))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSuccessBox renders a success result box
func RenderSuccessBox(title string, details map[string]string, width int) string {
	var lines []string

	// Title with checkmark
	titleLine := SuccessTitleStyle.Render("   " + SuccessMarker + "  SUCCESS  -  " + title)
	lines = append(lines, "")
	lines = append(lines, titleLine)
	lines = append(lines, "")

	// Details
	for key, value := range details {
		keyStyled := ResultKeyStyle.Render("   " + key + ":")
		valueStyled := ResultValueStyle.Render(value)
		lines = append(lines, keyStyled+" "+valueStyled)
	}

	lines = append(lines, "")

	content := strings.Join(lines, "\n")
	return SuccessBoxStyle(width).Render(content)
}

// RenderErrorBox renders an error result box with troubleshooting
func RenderErrorBox(title string, err error, troubleshooting []string, width int) string {
	var lines []string

	// Title with X mark
	titleLine := ErrorTitleStyle.Render("   " + FailureMarker + "  FAILED  -  " + title)
	lines = append(lines, "")
	lines = append(lines, titleLine)
	lines = append(lines, "")

	// Error message
	if err != nil {
		errorLine := ErrorMessageStyle.Render("   Error: " + err.Error())
		lines = append(lines, errorLine)
		lines = append(lines, "")
	}

	// Troubleshooting section
	if len(troubleshooting) > 0 {
		var troubleLines []string
		troubleLines = append(troubleLines, TroubleshootingTitleStyle.Render("Troubleshooting:"))
		troubleLines = append(troubleLines, "")
		for _, tip := range troubleshooting {
			troubleLines = append(troubleLines, TroubleshootingItemStyle.Render("  • "+tip))
		}

		troubleContent := strings.Join(troubleLines, "\n")
		troubleBox := TroubleshootingBoxStyle(width).Render(troubleContent)
		lines = append(lines, troubleBox)
		lines = append(lines, "")
	}

	content := strings.Join(lines, "\n")
	return ErrorBoxStyle(width).Render(content)
}
