package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/pathutil"
)

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	headerLines := 0

	writeLine := func(line string) {
		b.WriteString(line)
		b.WriteString("\n")
		headerLines++
	}

	writeLine(titleStyle.Render("bigfolders - Find the biggest folders"))

	switch {
	case m.session.Scanning():
		writeLine(statusStyle.Render(fmt.Sprintf("%s Scanning %s | %s folders | %s files | %s",
			m.spinner.View(),
			m.display(m.session.Label()),
			FormatCount(m.live.Dirs),
			FormatCount(m.live.Files),
			FormatSize(m.live.Bytes),
		)))
	case m.session.Meta().RootPath != "":
		meta := m.session.Meta()
		writeLine(statsStyle.Render(fmt.Sprintf("Root: %s | Total: %s | %s files | %s errors | took %s",
			m.display(meta.RootPath),
			FormatSize(meta.TotalSize),
			FormatCount(meta.FileCount),
			FormatCount(meta.ErrorCount),
			meta.Duration().Round(10*time.Millisecond),
		)))
	default:
		writeLine(statusStyle.Render("Press c to scan your home folder, a for all users, o to pick a folder."))
	}

	if m.volume != nil {
		writeLine(statsStyle.Render(fmt.Sprintf("Volume %s: %s used of %s (%.0f%%), %s free",
			m.volume.Path,
			humanize.IBytes(m.volume.Used),
			humanize.IBytes(m.volume.Total),
			m.volume.UsedPercent,
			humanize.IBytes(m.volume.Free),
		)))
	}

	if m.focus != "" {
		writeLine(breadcrumbStyle.Render("Under: " + truncateMiddle(m.display(m.focus), max(10, m.width-8))))
	}
	if m.err != nil {
		writeLine(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	if m.flash != "" {
		writeLine(flashStyle.Render(m.flash))
	}
	if m.inputActive {
		writeLine(m.input.View())
	}

	showAccessed := m.session.Settings().ShowAccessed
	widths := calcColumnWidths(m.view, showAccessed)
	nameWidth := calcNameWidth(m.width, widths)
	gap := strings.Repeat(" ", colGap)

	header := fmt.Sprintf("%*s%s", widths.size, "SIZE", gap)
	if showAccessed {
		header += fmt.Sprintf("%-*s%s", widths.accessed, "ACCESSED", gap)
	}
	header += fmt.Sprintf("%-*s%s%s", nameWidth, "FOLDER", gap, "SHARE")
	writeLine(headerStyle.Render(header))

	footerLines := 3
	visibleRows := max(m.height-headerLines-footerLines, 5)
	startIdx := 0
	if m.cursor >= visibleRows {
		startIdx = m.cursor - visibleRows + 1
	}
	endIdx := min(len(m.view), startIdx+visibleRows)

	total := m.shareTotal()
	for i := startIdx; i < endIdx; i++ {
		b.WriteString(m.formatEntry(m.view[i], i == m.cursor, widths, nameWidth, total))
		b.WriteString("\n")
	}
	for i := max(endIdx-startIdx, 0); i < visibleRows; i++ {
		b.WriteString("\n")
	}

	b.WriteString(statusStyle.Render(m.session.Status()))
	b.WriteString("\n")
	help := m.helpLine()
	if len(m.view) > 0 {
		help = fmt.Sprintf("%s [%d/%d]", help, m.cursor+1, len(m.view))
	}
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m *Model) display(path string) string {
	return pathutil.Tilde(path, m.opts.Home)
}

// shareTotal is what the bar column is relative to: the focused folder
// when one is set, otherwise the whole scan.
func (m *Model) shareTotal() int64 {
	if m.focus != "" {
		for _, e := range m.session.Entries() {
			if e.Path == m.focus {
				return e.Size
			}
		}
	}
	if total := m.session.Meta().TotalSize; total > 0 {
		return total
	}
	return m.live.Bytes
}

type columnWidths struct {
	size     int
	accessed int
}

const (
	colGap        = 2
	minNameWidth  = 10
	barBlockWidth = 10                                        // number of block characters
	barPctWidth   = 4                                         // " 78%" or "100%"
	barGapWidth   = 2                                         // space between blocks and pct
	barColWidth   = barBlockWidth + barGapWidth + barPctWidth // 16
	accessedFmt   = "2006-01-02 15:04"
)

func calcColumnWidths(entries []entry.ScanEntry, showAccessed bool) columnWidths {
	w := columnWidths{size: len("SIZE")}
	if showAccessed {
		w.accessed = len(accessedFmt)
	}
	for _, e := range entries {
		w.size = max(w.size, len(FormatSize(e.Size)))
	}
	return w
}

func calcNameWidth(totalWidth int, w columnWidths) int {
	used := w.size + colGap + colGap + barColWidth
	if w.accessed > 0 {
		used += w.accessed + colGap
	}
	return max(totalWidth-used, minNameWidth)
}

func (m *Model) formatEntry(e entry.ScanEntry, selected bool, widths columnWidths, nameWidth int, total int64) string {
	gap := strings.Repeat(" ", colGap)

	var b strings.Builder
	fmt.Fprintf(&b, "%*s%s", widths.size, FormatSize(e.Size), gap)
	if widths.accessed > 0 {
		accessed := "-"
		if e.HasAccessed() {
			accessed = e.Accessed.Format(accessedFmt)
		}
		fmt.Fprintf(&b, "%s%s", accessedStyle.Render(fmt.Sprintf("%-*s", widths.accessed, accessed)), gap)
	}

	name := truncateMiddle(m.display(e.Path), nameWidth)
	pad := max(nameWidth-len(name), 0)
	b.WriteString(dirStyle.Render(name))
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(gap)
	b.WriteString(formatBar(e.Size, total))

	if selected {
		return selectedStyle.Render(b.String())
	}
	return b.String()
}

func formatBar(entryVal, parentTotal int64) string {
	if parentTotal <= 0 || entryVal <= 0 {
		empty := strings.Repeat("░", barBlockWidth)
		return barEmptyStyle.Render(empty) + fmt.Sprintf("  %3d%%", 0)
	}

	pct := float64(entryVal) / float64(parentTotal) * 100
	if pct > 100 {
		pct = 100
	}

	filled := int(math.Round(pct / 100 * float64(barBlockWidth)))
	if filled < 1 && entryVal > 0 {
		filled = 1
	}
	if filled > barBlockWidth {
		filled = barBlockWidth
	}

	filledStr := barFilledStyle.Render(strings.Repeat("█", filled))
	emptyStr := barEmptyStyle.Render(strings.Repeat("░", barBlockWidth-filled))
	return filledStr + emptyStr + fmt.Sprintf("  %3d%%", int(math.Round(pct)))
}

func truncateMiddle(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	head := (maxLen - 3) / 2
	tail := maxLen - 3 - head
	return s[:head] + "..." + s[len(s)-tail:]
}
