package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rohmanhakim/krishield/internal/app"
	"github.com/spf13/cobra"
)

var (
	communityName        string
	communityDescription string
)

var communityCmd = &cobra.Command{
	Use:   "community",
	Short: "Farmer groups and their chats",
}

var communityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List communities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			all, err := a.Community.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range all {
				joined := ""
				if c.Joined {
					joined = " [joined]"
				}
				fmt.Fprintf(out, "%s  %s (%d members)%s\n    %s\n", c.ID, c.Name, c.MemberCount, joined, c.Description)
			}
			return nil
		})
	},
}

var communityCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a community and join it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			c, err := a.Community.Create(ctx, communityName, communityDescription)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Community Created! %s (%s)\n", c.Name, c.ID)
			return nil
		})
	},
}

var communityJoinCmd = &cobra.Command{
	Use:   "join <id>",
	Short: "Join a community",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			c, err := a.Community.Join(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Joined %s\n", c.Name)
			return nil
		})
	},
}

var communityMessagesCmd = &cobra.Command{
	Use:   "messages <id>",
	Short: "Show a community's chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			history, err := a.Community.Messages(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range history {
				at := time.UnixMilli(m.Timestamp).Local().Format("02 Jan 15:04")
				fmt.Fprintf(out, "[%s] %s: %s\n", at, m.Sender, m.Text)
			}
			return nil
		})
	},
}

var communityPostCmd = &cobra.Command{
	Use:   "post <id> <text>",
	Short: "Post a message to a community",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if _, err := a.Community.Post(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sent")
			return nil
		})
	},
}

func init() {
	communityCreateCmd.Flags().StringVar(&communityName, "name", "", "community name")
	communityCreateCmd.Flags().StringVar(&communityDescription, "description", "", "what the community is about")

	communityCmd.AddCommand(
		communityListCmd,
		communityCreateCmd,
		communityJoinCmd,
		communityMessagesCmd,
		communityPostCmd,
	)
}
