package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingo/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved practice sessions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		topic, _ := cmd.Flags().GetString("topic")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		sessions, err := s.SessionRepo().List(context.Background(), store.QueryOpts{Limit: limit, Topic: topic})
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		fmt.Printf("%-36s  %-16s  %-24s  %-10s  %5s  %5s  %s\n",
			"ID", "Started", "Topic", "State", "Lines", "Fail", "Fallback")
		fmt.Println(strings.Repeat("─", 116))
		for _, ss := range sessions {
			fb := ""
			if ss.FallbackUsed {
				fb = "yes"
			}
			fmt.Printf("%-36s  %-16s  %-24s  %-10s  %2d/%-2d  %5d  %s\n",
				ss.ID,
				ss.StartedAt.Local().Format("2006-01-02 15:04"),
				truncate(ss.Topic, 24),
				ss.State,
				ss.Completed+ss.Failed, ss.LineCount,
				ss.Failed,
				fb,
			)
		}
		return nil
	},
}

var historyViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the transcript of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := s.SessionRepo().Get(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("session %s not found", args[0])
		}

		fmt.Printf("Topic:     %s\n", rec.Topic)
		fmt.Printf("Started:   %s\n", rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Duration:  %s\n", rec.EndedAt.Sub(rec.StartedAt).Round(time.Second))
		fmt.Printf("State:     %s\n", rec.State)
		if rec.FallbackUsed {
			fmt.Println("Script:    fallback")
		}
		fmt.Println()
		fmt.Println(strings.Repeat("─", 60))
		for _, l := range rec.Lines {
			marker := " "
			if l.IsUserTurn {
				marker = ">"
			}
			fmt.Printf("%s %-12s %s", marker, l.Speaker+":", l.Text)
			if l.Status != "completed" {
				fmt.Printf("  [%s]", l.Status)
			}
			fmt.Println()
		}
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the most recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("keep")
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.SessionRepo().Prune(context.Background(), keep)
		if err != nil {
			return fmt.Errorf("prune sessions: %w", err)
		}
		fmt.Printf("Deleted %d session(s).\n", n)
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func init() {
	historyListCmd.Flags().IntP("limit", "n", 20, "Number of sessions to show")
	historyListCmd.Flags().StringP("topic", "t", "", "Only sessions on this topic")
	historyPruneCmd.Flags().Int("keep", 50, "Number of sessions to keep")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyViewCmd)
	historyCmd.AddCommand(historyPruneCmd)
}
