package main

import (
	"fmt"
	"strconv"

	"github.com/mmcdole/trackr/internal/domain"
	"github.com/spf13/cobra"
)

func newListsCmd(a *app) *cobra.Command {
	var (
		public  bool
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Show your lists, or public lists with --public",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			store := sess.Lists

			var lists []domain.List
			if public {
				err = store.FetchLists(cmd.Context(), refresh)
				lists = store.GetLists()
			} else {
				err = store.FetchMyLists(cmd.Context(), refresh)
				lists = store.GetMyLists()
			}
			if err != nil && len(lists) == 0 {
				return err
			}
			if len(lists) == 0 {
				fmt.Println("No lists found.")
				return nil
			}

			rows := make([][]string, 0, len(lists))
			for _, l := range lists {
				visibility := "private"
				if l.IsPublic {
					visibility = "public"
				}
				rows = append(rows, []string{l.ID, truncate(l.Name, 40), strconv.Itoa(l.TotalBooks), visibility})
			}
			printTable([]string{"ID", "Name", "Books", "Visibility"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&public, "public", false, "Show public lists")
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Ignore cached data")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "list <list-id>",
		Short: "Show the books in a list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			store := sess.Lists
			if err := store.FetchList(cmd.Context(), args[0], refresh); err != nil {
				if _, ok := store.GetList(args[0]); !ok {
					return err
				}
			}
			d, _ := store.GetList(args[0])
			fmt.Printf("%s (%s)\n", d.Name, d.GetDescription())
			if d.Description != "" {
				fmt.Println(d.Description)
			}
			printBooks(d.Books)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Ignore cached data")
	return cmd
}

func newListCreateCmd(a *app) *cobra.Command {
	var (
		description string
		public      bool
	)

	cmd := &cobra.Command{
		Use:   "list-create <name>",
		Short: "Create a new list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			created, err := sess.Lists.CreateList(cmd.Context(), domain.NewList{
				Name:        args[0],
				Description: description,
				IsPublic:    public,
			})
			if err != nil {
				return err
			}
			fmt.Printf("✓ Created list %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "List description")
	cmd.Flags().BoolVar(&public, "public", false, "Make the list public")
	return cmd
}

func newListAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-add <list-id> <book-id>",
		Short: "Add a book to a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			if err := sess.Lists.AddBookToList(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("✓ Added %s to list %s\n", args[1], args[0])
			return nil
		},
	}
}

func newListRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-remove <list-id> <book-id>",
		Short: "Remove a book from a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			if err := sess.Lists.RemoveBookFromList(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("✓ Removed %s from list %s\n", args[1], args[0])
			return nil
		},
	}
}
