package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/autopost-bot/internal/config"
	"github.com/autopost-bot/internal/models"
	"github.com/autopost-bot/internal/schedule"
	"github.com/autopost-bot/internal/storage"
	"github.com/autopost-bot/internal/storage/sqlite"
)

var (
	cfgFile string
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "autopost",
		Short:             "Maintenance CLI for the autopost bot",
		PersistentPreRunE: initializeApp,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	rootCmd.AddCommand(channelsCmd())
	rootCmd.AddCommand(postsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return repo.Migrate()
}

// ============ CHANNEL COMMANDS ============

func channelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage the channel pool",
	}

	cmd.AddCommand(channelsListCmd())
	cmd.AddCommand(channelsAddCmd())
	cmd.AddCommand(channelsRemoveCmd())
	return cmd
}

func channelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pool channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			channels, err := repo.ListChannels(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Channels (%d) ===\n\n", len(channels))
			for _, ch := range channels {
				fmt.Printf("[%d] %s", ch.ChannelID, ch.Name)
				if ch.Username != "" {
					fmt.Printf(" (@%s)", ch.Username)
				}
				fmt.Printf("\n    Subscribers: %d\n", ch.Subscribers)
				fmt.Printf("    Added: %s\n\n", ch.CreatedAt.Format(time.RFC1123))
			}
			return nil
		},
	}
}

func channelsAddCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "add <chat-id> <name>",
		Short: "Add a channel to the pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q", args[0])
			}

			ch := &models.Channel{
				ChannelID: chatID,
				Name:      args[1],
				Username:  username,
			}
			if err := repo.SaveChannel(context.Background(), ch); err != nil {
				return err
			}

			fmt.Printf("Channel %d (%s) added\n", chatID, args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Channel username without @")
	return cmd
}

func channelsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <chat-id>",
		Short: "Remove a channel from the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q", args[0])
			}

			if err := repo.DeleteChannel(context.Background(), chatID); err != nil {
				return err
			}
			fmt.Printf("Channel %d removed\n", chatID)
			return nil
		},
	}
}

// ============ POST COMMANDS ============

func postsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List and manage posts",
	}

	cmd.AddCommand(postsListCmd())
	cmd.AddCommand(postsQueueCmd())
	cmd.AddCommand(postsDeleteCmd())
	return cmd
}

func postsListCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.DefaultPostFilter()
			filter.Limit = limit

			if status != "" {
				s := models.PostStatus(status)
				filter.Status = &s
			}

			posts, err := repo.ListPosts(context.Background(), filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Posts (%d) ===\n\n", len(posts))
			for _, p := range posts {
				fmt.Printf("[%s] %s\n", p.PostID, p.Status)
				fmt.Printf("    Channels: %d\n", len(p.Channels))
				fmt.Printf("    Created: %s\n", p.CreatedAt.Format(time.RFC1123))

				if p.LastPublishedAt != nil {
					fmt.Printf("    Last published: %s\n", p.LastPublishedAt.Format(time.RFC1123))
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum posts to show")

	return cmd
}

func postsQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show posts with their next run time",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := models.PostStatusScheduled
			filter := storage.DefaultPostFilter()
			filter.Status = &s
			filter.OrderDesc = false

			posts, err := repo.ListPosts(context.Background(), filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Scheduled Posts (%d) ===\n\n", len(posts))
			if len(posts) == 0 {
				fmt.Println("No posts scheduled")
				return nil
			}

			now := time.Now()
			for _, p := range posts {
				next := schedule.NextRun(p.Schedule, now)
				fmt.Printf("[%s] next run: %s\n", p.PostID, next.Format(time.RFC1123))

				// Show preview (first 100 chars)
				preview := p.Text
				if len(preview) > 100 {
					preview = preview[:100] + "..."
				}
				if preview == "" {
					preview = "(image only)"
				}
				fmt.Printf("    Preview: %s\n\n", preview)
			}
			return nil
		},
	}
}

func postsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete a post; the next run will be skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := repo.DeletePost(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Post %s deleted\n", args[0])
			return nil
		},
	}
}
