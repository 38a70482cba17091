package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhatai1995/DreamSight-AI/internal/logging"
)

// lookupCmd resolves folk lucky numbers from the command line
var lookupCmd = &cobra.Command{
	Use:   "lookup [dream text]",
	Short: "Look up Sổ Mơ lucky numbers for a dream",
	Long: `Scans the dream text for dream-book keywords and prints the matched
keyword with its expanded lucky number set (Tam Hợp / Bóng Số).

Example:
  dreamsight lookup "tôi mơ thấy rắn bò vào nhà"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		book := loadDreambook(logging.Named(logging.CategoryBoot))
		text := strings.Join(args, " ")

		match, ok := book.Lookup(text)
		if !ok {
			fmt.Println("No dream-book keyword found.")
			return nil
		}
		fmt.Printf("Keyword: %s\nNumbers: %s\n", match.Keyword, match.Codes)
		return nil
	},
}
