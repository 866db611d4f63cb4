package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"mediasession/internal/metadata"

	"github.com/spf13/cobra"
)

func tracksCmd(configPath *string) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()

			extractor := metadata.NewExtractor(cfg.Library.SupportedFormats, logger)
			c, db, err := openCatalog(cmd.Context(), cfg, extractor, logger)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			tracks := c.List()
			if search != "" {
				tracks = c.Search(search)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tARTIST\tALBUM\tDURATION")
			for _, track := range tracks {
				total := track.DurationMS / 1000
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d:%02d\n",
					track.ID, track.Title, track.Artist, track.Album, total/60, total%60)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only list tracks matching the query")

	return cmd
}
