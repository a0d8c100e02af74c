package display

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"safaridl/pkg/sources"
)

var (
	infoPrefix  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("[*]")
	statePrefix = lipgloss.NewStyle().Background(lipgloss.Color("11")).Foreground(lipgloss.Color("0")).Render("[-]")
	errorPrefix = lipgloss.NewStyle().Background(lipgloss.Color("9")).Foreground(lipgloss.Color("15")).Render("[#]")
	hintPrefix  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("[+]")

	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	labelStyle = lipgloss.NewStyle().Bold(true)
)

const banner = `
   ____     ___         _
  / __/__ _/ _/__ _____(_)
 _\ \/ _ ` + "`" + `/ _/ _ ` + "`" + `/ __/ /
/___/\_,_/_/ \_,_/_/ /_/
`

// Display is the user-facing reporting layer: styled notices, a monotonic
// progress bar and advisory messages that fire at most once per run.
type Display struct {
	log   *zap.Logger
	width int

	mu      sync.Mutex
	percent int
	advised map[string]bool
}

func New(log *zap.Logger) *Display {
	return &Display{
		log:     log,
		width:   80,
		percent: -1,
		advised: make(map[string]bool),
	}
}

func (d *Display) Intro() {
	fmt.Fprintln(os.Stdout, barStyle.Render(banner))
}

func (d *Display) Info(msg string) {
	d.log.Info(msg)
	d.out(infoPrefix + " " + msg)
}

// State marks the start of a run phase.
func (d *Display) State(msg string) {
	d.log.Info(msg)
	d.out(statePrefix + " " + msg)
}

func (d *Display) Error(msg string) {
	d.log.Error(msg)
	d.out(errorPrefix + " " + msg)
}

func (d *Display) Hint(msg string) {
	d.out(hintPrefix + " " + msg)
}

// AdviseOnce prints an informational notice at most once per key per run.
// It reports whether the notice was printed.
func (d *Display) AdviseOnce(key, msg string) bool {
	d.mu.Lock()
	if d.advised[key] {
		d.mu.Unlock()
		return false
	}
	d.advised[key] = true
	d.mu.Unlock()

	d.Info(msg)
	return true
}

// ResetProgress rewinds the bar for the next phase.
func (d *Display) ResetProgress() {
	d.mu.Lock()
	d.percent = -1
	d.mu.Unlock()
}

// Progress renders the bar only when the integer percentage strictly
// increases, so the display never goes backwards and never repeats a value.
// Safe to call from concurrent asset workers.
func (d *Display) Progress(done, total int) {
	if total <= 0 {
		return
	}
	percent := done * 100 / total

	d.mu.Lock()
	if percent <= d.percent {
		d.mu.Unlock()
		return
	}
	d.percent = percent

	barWidth := d.width - 11
	filled := percent * barWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
	line := fmt.Sprintf("\r    %s%4d%%", barStyle.Render("["+bar+"]"), percent)
	if percent == 100 {
		line += "\n"
	}
	fmt.Fprint(os.Stdout, line)
	d.mu.Unlock()
}

// BookInfo prints the metadata banner for the book being downloaded.
func (d *Display) BookInfo(id string, info *sources.BookInfo) {
	desc := strings.ReplaceAll(textContent(info.Description), "\n", " ")
	if len(desc) > 500 {
		desc = desc[:500] + "..."
	}

	publishers := make([]string, len(info.Publishers))
	for i, p := range info.Publishers {
		publishers[i] = p.Name
	}

	for _, row := range [][2]string{
		{"Title", info.Title},
		{"Authors", info.AuthorNames()},
		{"Identifier", info.Identifier},
		{"ISBN", info.ISBN},
		{"Publishers", strings.Join(publishers, ", ")},
		{"Rights", info.Rights},
		{"Description", desc},
		{"URL", info.WebURL},
	} {
		d.State(labelStyle.Render(row[0]+":") + " " + row[1])
	}
}

func (d *Display) Done(epubFile string) {
	d.Info("Done: " + epubFile)
}

func (d *Display) out(line string) {
	fmt.Fprint(os.Stdout, "\r"+strings.Repeat(" ", d.width)+"\r"+line+"\n")
}

// textContent strips markup from the service's HTML description blobs.
func textContent(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return "n/d"
	}
	var buf bytes.Buffer
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return buf.String()
}
