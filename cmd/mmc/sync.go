package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/app"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the whole collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		perPage, _ := cmd.Flags().GetInt("per-page")
		if perPage <= 0 {
			perPage = a.Config.PerPage
		}

		total := 0
		for p, err := range a.Importer.ImportAll(ctx, username(cmd, a), perPage) {
			if err != nil {
				return fmt.Errorf("import stopped after %d items: %w", total, err)
			}
			total += p.Count
			if p.TotalPages != nil {
				fmt.Printf("page %d/%d: %d items\n", p.Page, *p.TotalPages, p.Count)
			} else {
				fmt.Printf("page %d: %d items\n", p.Page, p.Count)
			}
		}
		fmt.Printf("Imported %d items\n", total)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Pull items added since the last refresh and sync the wantlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := app.RefreshOptions{PerPage: a.Config.PerPage, MaxPages: a.Config.RefreshMaxPages}
		if n, _ := cmd.Flags().GetInt("max-pages"); n > 0 {
			opts.MaxPages = n
		}
		if full, _ := cmd.Flags().GetBool("full"); full {
			empty := ""
			opts.Cursor = &empty
		} else if cmd.Flags().Changed("since") {
			since, _ := cmd.Flags().GetString("since")
			opts.Cursor = &since
		}

		res, err := a.Refresh.Run(ctx, username(cmd, a), opts)
		if err != nil {
			return err
		}
		fmt.Printf("Touched %d items over %d pages, %d wants\n", res.Touched, res.Pages, res.Wants)
		if res.Cursor != "" {
			fmt.Printf("Cursor: %s\n", res.Cursor)
		}
		return nil
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fetch full release detail for releases not yet enriched",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if id, _ := cmd.Flags().GetInt64("release"); id > 0 {
			if err := a.Enricher.EnrichOne(ctx, id); err != nil {
				return err
			}
			rel, err := a.DB.GetRelease(ctx, id)
			if err != nil {
				return err
			}
			if rel == nil || !rel.IsEnriched() {
				return fmt.Errorf("release %d was not stored as enriched", id)
			}
			title := ""
			if rel.Title != nil {
				title = *rel.Title
			}
			fmt.Printf("Enriched release %d %s\n", id, title)
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		n, err := a.Enricher.EnrichMissing(ctx, limit)
		for _, e := range a.Enricher.Errors() {
			fmt.Printf("release %d: %s\n", e.ReleaseID, e.Message)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Enriched %d releases\n", n)
		return nil
	},
}

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Download pending cover images within the daily quota",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		n, err := a.Images.FetchPending(ctx, limit)
		if err != nil {
			return err
		}
		fmt.Printf("Fetched %d images\n", n)
		return nil
	},
}
