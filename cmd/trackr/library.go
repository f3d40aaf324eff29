package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/trackr/internal/domain"
	"github.com/mmcdole/trackr/internal/search"
	"github.com/spf13/cobra"
)

func newLibraryCmd(a *app) *cobra.Command {
	var (
		status  string
		filter  string
		refresh bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:     "library",
		Aliases: []string{"ls"},
		Short:   "List tracked books",
		Long: `List the books in your library.

Examples:
  trackr library                     # Every tracked book
  trackr library --status reading    # Only books in progress
  trackr library --filter berserk    # Fuzzy match on title and author`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			store := sess.Tracked
			if refresh || store.HydratedAt().IsZero() {
				if err := store.FetchMyLibraryBooks(cmd.Context(), nil); err != nil {
					if len(store.GetTrackedBooks()) == 0 {
						return err
					}
					a.logger.Warn("showing cached library", "error", err)
				}
			}

			var books []domain.TrackedBook
			if status != "" {
				s, err := domain.ParseReadingStatus(status)
				if err != nil {
					return err
				}
				books = store.GetTrackedBooksByStatus(s)
			} else {
				books = store.GetTrackedBooks()
			}
			if filter != "" {
				books = search.FilterTracked(filter, books)
			}

			if asJSON {
				return printJSON(books)
			}
			if len(books) == 0 {
				fmt.Println("No books found in library.")
				fmt.Println("Use 'trackr search <query>' and 'trackr track <id>' to add books.")
				return nil
			}

			rows := make([][]string, 0, len(books))
			for _, tb := range books {
				rows = append(rows, []string{
					tb.Book.ID,
					truncate(tb.Book.DisplayTitle(), 45),
					tb.TrackingStatus.Status.Label(),
					tb.Book.Progress(tb.TrackingStatus),
					formatRating(tb.TrackingStatus.Rating),
				})
			}
			printTable([]string{"ID", "Title", "Status", "Progress", "Rating"}, rows)

			counts := store.CountByStatus()
			parts := make([]string, 0, len(domain.ReadingStatuses))
			for _, s := range domain.ReadingStatuses {
				if counts[s] > 0 {
					parts = append(parts, fmt.Sprintf("%d %s", counts[s], strings.ToLower(s.Label())))
				}
			}
			fmt.Printf("\nTotal: %d book(s)  %s\n", len(books), strings.Join(parts, " · "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status (plan_to_read, reading, completed, on_hold, dropped)")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Fuzzy filter on title and author")
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Refetch the library from the server")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func formatRating(r *float64) string {
	if r == nil {
		return "-"
	}
	return strconv.FormatFloat(*r, 'f', 1, 64)
}

func newTrackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "track <book-id>",
		Short: "Add a book to your library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			book := domain.Book{ID: args[0]}
			if err := sess.Books.FetchBook(cmd.Context(), args[0], false); err == nil {
				book, _ = sess.Books.GetBook(args[0])
			}
			if err := sess.Tracked.AddTrackedBook(cmd.Context(), book); err != nil {
				return err
			}
			tb, _ := sess.Tracked.GetTrackedBook(args[0])
			fmt.Printf("✓ Tracking %s\n", tb.Book.DisplayTitle())
			return nil
		},
	}
}

func newUntrackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "untrack <book-id>",
		Short: "Remove a book from your library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			if err := sess.Tracked.RemoveTrackedBook(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Removed %s\n", args[0])
			return nil
		},
	}
}

func newProgressCmd(a *app) *cobra.Command {
	var (
		chapter int
		volume  int
		status  string
		rating  float64
		notes   string
	)

	cmd := &cobra.Command{
		Use:   "progress <book-id>",
		Short: "Update reading progress for a tracked book",
		Long: `Update one or more tracking fields. Only the flags you pass are sent.

Examples:
  trackr progress 123 --chapter 42
  trackr progress 123 --status completed --rating 9`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update domain.TrackingUpdate
			flags := cmd.Flags()
			if flags.Changed("chapter") {
				update.CurrentChapter = &chapter
			}
			if flags.Changed("volume") {
				update.CurrentVolume = &volume
			}
			if flags.Changed("status") {
				s, err := domain.ParseReadingStatus(status)
				if err != nil {
					return err
				}
				update.Status = &s
			}
			if flags.Changed("rating") {
				update.Rating = &rating
			}
			if flags.Changed("notes") {
				update.Notes = &notes
			}
			if update.IsEmpty() {
				return errors.New("nothing to update; pass at least one of --chapter, --volume, --status, --rating, --notes")
			}

			sess, err := a.session()
			if err != nil {
				return err
			}
			if err := sess.Tracked.UpdateTrackedBook(cmd.Context(), args[0], update); err != nil {
				return err
			}
			tb, ok := sess.Tracked.GetTrackedBook(args[0])
			if !ok {
				fmt.Printf("✓ Updated %s (no longer tracked)\n", args[0])
				return nil
			}
			fmt.Printf("✓ %s: %s %s\n", tb.Book.DisplayTitle(),
				tb.TrackingStatus.Status.Label(), tb.Book.Progress(tb.TrackingStatus))
			return nil
		},
	}

	cmd.Flags().IntVarP(&chapter, "chapter", "c", 0, "Current chapter")
	cmd.Flags().IntVar(&volume, "volume", 0, "Current volume")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Reading status")
	cmd.Flags().Float64VarP(&rating, "rating", "r", 0, "Rating")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")
	return cmd
}
