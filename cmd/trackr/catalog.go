package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/trackr/internal/domain"
	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		refresh bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the book catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			res, err := sess.Search.Search(cmd.Context(), strings.Join(args, " "), refresh)
			if err != nil && len(res.Books) == 0 {
				return err
			}

			if asJSON {
				return printJSON(res)
			}
			if len(res.Books) == 0 {
				fmt.Printf("No books match %q.\n", res.Query)
				return nil
			}
			rows := make([][]string, 0, len(res.Books))
			for _, b := range res.Books {
				mark := ""
				if t := sess.Tracked.GetTrackedBookStatus(b.ID); t != nil {
					mark = t.Status.Label()
				}
				rows = append(rows, []string{b.ID, truncate(b.DisplayTitle(), 45), truncate(b.Author, 25), mark})
			}
			printTable([]string{"ID", "Title", "Author", "Tracked"}, rows)
			fmt.Printf("\nShowing %d of %d result(s)\n", len(res.Books), res.Total)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Ignore cached results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newCategoriesCmd(a *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "categories [category-id]",
		Short: "List categories, or the books in one category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			store := sess.Categories

			if len(args) == 1 {
				if err := store.FetchCategory(cmd.Context(), args[0], refresh); err != nil {
					if _, ok := store.GetCategory(args[0]); !ok {
						return err
					}
				}
				c, _ := store.GetCategory(args[0])
				fmt.Println(c.Name)
				if c.Description != "" {
					fmt.Println(c.Description)
				}
				printBooks(c.Books)
				return nil
			}

			if err := store.FetchCategories(cmd.Context(), refresh); err != nil && len(store.GetCategories()) == 0 {
				return err
			}
			rows := [][]string{}
			for _, c := range store.GetCategories() {
				rows = append(rows, []string{c.ID, c.Name, strconv.Itoa(c.BookCount)})
			}
			printTable([]string{"ID", "Name", "Books"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Ignore cached data")
	return cmd
}

func printBooks(books []domain.Book) {
	if len(books) == 0 {
		fmt.Println("No books.")
		return
	}
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		status := ""
		if b.TrackingStatus != nil {
			status = b.TrackingStatus.Status.Label()
		}
		rows = append(rows, []string{b.ID, truncate(b.DisplayTitle(), 45), truncate(b.Author, 25), status})
	}
	printTable([]string{"ID", "Title", "Author", "Tracked"}, rows)
}
