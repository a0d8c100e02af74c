package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"safaridl/pkg/data"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all downloaded books",
	Long:  "Display every book recorded in the local library in a formatted table",
	Run: func(cmd *cobra.Command, args []string) {
		repo, err := data.NewRepository(libraryPath)
		cobra.CheckErr(err)
		defer repo.Close()

		books, err := repo.ListBooks()
		cobra.CheckErr(err)

		if len(books) == 0 {
			fmt.Println("No books in the library yet. Use `safaridl download <book id>` to get one.")
			return
		}

		columns := []table.Column{
			{Title: "Title", Width: 40},
			{Title: "ISBN", Width: 14},
			{Title: "Chapters", Width: 8},
			{Title: "Downloaded", Width: 12},
			{Title: "File", Width: 40},
		}

		rows := []table.Row{}
		for _, book := range books {
			rows = append(rows, table.Row{
				truncateString(book.Title, 38),
				book.ISBN,
				strconv.Itoa(book.Chapters),
				book.DownloadedAt.Format("2006-01-02"),
				truncateString(book.EpubPath, 38),
			})
		}

		t := table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithFocused(false),
			table.WithHeight(len(rows)),
		)

		s := table.DefaultStyles()
		s.Header = s.Header.
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			BorderBottom(true).
			Bold(true)
		s.Selected = lipgloss.NewStyle()
		t.SetStyles(s)

		fmt.Printf("\nLibrary (%d books)\n\n", len(books))
		fmt.Println(t.View())
	},
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
