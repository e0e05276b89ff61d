package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List saved runs, or show one run's configuration and summary",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(viper.GetString("history_path"))
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			item, err := store.Get(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Printf("Run       : %s (%s)\n", item.ID, humanize.Time(item.Timestamp))
			fmt.Printf("Target    : %s\n", item.Config.TargetURL)
			fmt.Printf("Sessions  : %d completed, %d succeeded, %d failed (%.1f%%)\n",
				item.Summary.Completed, item.Summary.Succeeded, item.Summary.Failed, item.Summary.SuccessRate)
			fmt.Printf("Bandwidth : %.2f MB total, %.2f MB avg, %.2f MB p90\n",
				item.Summary.TotalMB, item.Summary.AvgMB, item.Summary.P90MB)
			return nil
		}

		items, err := store.List()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No saved runs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWHEN\tSESSIONS\tSUCCESS\tTOTAL MB\tAVG MB")
		for _, it := range items {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.1f%%\t%.2f\t%.2f\n",
				it.ID, humanize.Time(it.Timestamp), it.Summary.Completed, it.Summary.SuccessRate,
				it.Summary.TotalMB, it.Summary.AvgMB)
		}
		return w.Flush()
	},
}
