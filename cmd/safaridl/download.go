package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"safaridl/pkg/data"
	"safaridl/pkg/display"
	"safaridl/pkg/integrations"
	"safaridl/pkg/services"
	"safaridl/pkg/session"
	"safaridl/pkg/sources"
	"safaridl/pkg/utils"
)

var downloadCmd = &cobra.Command{
	Use:   "download <book id>",
	Short: "Download a book and build its EPUB",
	Long: "Download every chapter, stylesheet and image of a book and assemble " +
		"the EPUB package. The book id is the digits in the book's URL: " +
		"`https://www.safaribooksonline.com/library/view/book-name/XXXXXXXXXXXXX/`.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bookID := args[0]
		if !isDigits(bookID) {
			cobra.CheckErr(fmt.Errorf("invalid book id: %s", bookID))
		}
		noKindle, _ := cmd.Flags().GetBool("no-kindle")
		outputDir, _ := cmd.Flags().GetString("output")

		log, cleanup, err := newLogger()
		cobra.CheckErr(err)
		defer cleanup()

		disp := display.New(log)
		disp.Intro()

		run := &downloadRun{
			bookID:    bookID,
			noKindle:  noKindle,
			outputDir: outputDir,
			disp:      disp,
			log:       log,
		}
		if err := run.execute(cmd.Context()); err != nil {
			fatal(disp, err)
		}

		removeLogOnSuccess()
	},
}

func init() {
	downloadCmd.Flags().Bool("no-kindle", false,
		"Remove the CSS rules that block overflow on `table` and `pre` elements (not for e-readers)")
	downloadCmd.Flags().StringP("output", "o", ".", "Directory the book package is created in")
}

type downloadRun struct {
	bookID    string
	noKindle  bool
	outputDir string
	disp      *display.Display
	log       *zap.Logger
}

func (r *downloadRun) execute(ctx context.Context) error {
	cookies, err := session.Load(cookiesPath)
	if err != nil {
		return err
	}

	api := utils.NewAPI(cookies, "safaribooksonline")
	var source sources.Source = sources.NewSafari(api, r.log)

	info, err := source.GetBookInfo(ctx, r.bookID)
	if err != nil {
		return err
	}
	r.disp.BookInfo(r.bookID, info)

	chapters, err := source.GetChapters(ctx, r.bookID)
	if err != nil {
		return err
	}
	r.disp.Info(fmt.Sprintf("Found %d chapters!", len(chapters)))

	bookDir, err := filepath.Abs(filepath.Join(r.outputDir, integrations.BookDirName(info.Title)))
	if err != nil {
		return err
	}
	r.disp.Info("Output directory:\n    " + bookDir)

	asm := integrations.NewAssembler(bookDir, r.log)
	if err := asm.Layout(); err != nil {
		return err
	}

	dl, err := services.NewDownloader(api, r.disp, r.log, services.Config{
		BookDir:  bookDir,
		BaseURL:  info.WebURL,
		NoKindle: r.noKindle,
	})
	if err != nil {
		return err
	}

	r.disp.State("Downloading book contents...")
	if err := dl.Materialize(ctx, chapters); err != nil {
		return err
	}

	// Asset failures don't abort: the manifest is reconciled against what
	// actually materialized.
	r.disp.State("Downloading book CSSs...")
	if err := dl.FetchStylesheets(ctx); err != nil {
		r.log.Warn("some stylesheets failed to download", zap.Error(err))
	}
	r.disp.State("Downloading book images...")
	if err := dl.FetchImages(ctx); err != nil {
		r.log.Warn("some images failed to download", zap.Error(err))
	}

	toc, err := source.GetTOC(ctx, r.bookID)
	if err != nil {
		return err
	}
	nav := integrations.BuildNavMap(toc)

	r.disp.State("Creating EPUB file...")
	firstImage := ""
	if images := dl.Images(); len(images) > 0 {
		firstImage = images[0]
	}
	if err := asm.Assemble(r.bookID, info, chapters, firstImage, nav); err != nil {
		return err
	}

	epubPath := filepath.Join(bookDir, integrations.EpubName(info.Title))
	if err := asm.Archive(epubPath); err != nil {
		return err
	}

	r.record(info, epubPath, len(chapters))
	r.disp.Done(epubPath)
	return nil
}

// record stores the finished download in the local library. The epub on disk
// is the product; a registry failure is only logged.
func (r *downloadRun) record(info *sources.BookInfo, epubPath string, chapters int) {
	repo, err := data.NewRepository(libraryPath)
	if err != nil {
		r.log.Warn("failed to open library", zap.Error(err))
		return
	}
	defer repo.Close()

	err = repo.SaveBook(&data.Book{
		ID:           r.bookID,
		Title:        info.Title,
		ISBN:         info.ISBN,
		EpubPath:     epubPath,
		Chapters:     chapters,
		DownloadedAt: time.Now(),
	})
	if err != nil {
		r.log.Warn("failed to record download in library", zap.Error(err))
	}
}

// fatal reports an unrecoverable error and aborts the run. The diagnostic
// log always survives a fatal exit.
func fatal(disp *display.Display, err error) {
	disp.Error(err.Error())

	var sessErr *sources.SessionError
	if errors.As(err, &sessErr) {
		// the session is dead; force a fresh login next run
		session.Remove(cookiesPath)
	} else {
		disp.Hint("Please delete all the `<BOOK NAME>/OEBPS/*.xhtml` files and restart the program.")
	}

	disp.Error("Aborting...")
	os.Exit(128)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
