package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"venue-crawler/browser"
	"venue-crawler/scraper"
)

var roomsMode string

func init() {
	roomsCmd.Flags().StringVar(&roomsMode, "mode", "", "browser or http (defaults to ROOM_FETCH_MODE)")
	rootCmd.AddCommand(roomsCmd)
}

var roomsCmd = &cobra.Command{
	Use:   "rooms <website-url>",
	Short: "Extracts the rooms or games listed on a venue website and prints them as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if roomsMode != "" {
			cfg.RoomFetchMode = roomsMode
		}
		ctx := cmd.Context()

		var chrome *browser.Chrome
		if cfg.RoomFetchMode != "http" {
			c, err := browser.Launch(ctx, browserOptions())
			if err != nil {
				return err
			}
			defer c.Close()
			chrome = c
		}

		rooms := extractRooms(ctx, chrome, args[0], logger, scraper.LogReporter{Logger: logger})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rooms)
	},
}
