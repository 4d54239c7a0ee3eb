// dashboard is a terminal client for the renomarket marketplace: the same
// guard, stores, and messaging session the web dashboard runs on, driven
// from the command line.
package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"renomarket.org/internal/chat"
	"renomarket.org/internal/config"
	"renomarket.org/internal/dashboard"
	"renomarket.org/internal/gateway"
	"renomarket.org/internal/localstore"
	"renomarket.org/internal/obs"
	"renomarket.org/internal/quote"
)

var version = "0.3.1"

func main() {
	obs.Init()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, role, projectID string

	root := &cobra.Command{
		Use:           "dashboard",
		Short:         "Renomarket dashboard client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "dashboard.yaml", "config file path")
	root.PersistentFlags().StringVar(&role, "role", "user", "required role: user|contractor|vendor")
	root.PersistentFlags().StringVar(&projectID, "project", "", "explicit project id (defaults to latest)")

	root.AddCommand(newLoginCmd(&configPath))
	root.AddCommand(newLogoutCmd(&configPath))
	root.AddCommand(newStatusCmd(&configPath, &role, &projectID))
	root.AddCommand(newProjectCmd(&configPath, &role, &projectID))
	root.AddCommand(newTasksCmd(&configPath, &role, &projectID))
	root.AddCommand(newProductsCmd(&configPath, &role, &projectID))
	root.AddCommand(newQuoteCmd(&configPath, &role, &projectID))
	root.AddCommand(newChatCmd(&configPath, &role, &projectID))
	return root
}

func openShell(configPath, role, projectID string) (*dashboard.Shell, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	shell, err := dashboard.New(cfg)
	if err != nil {
		return nil, err
	}
	out := shell.Open(context.Background(), role, "/"+filepath.Base(os.Args[0]), projectID)
	if !out.Allowed() {
		shell.Close()
		return nil, fmt.Errorf("not signed in (run `dashboard login`)")
	}
	return shell, nil
}

func newLoginCmd(configPath *string) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token for the session",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := localstore.Open(cfg.StatePath)
			if err != nil {
				return err
			}
			defer store.Close()
			if strings.TrimSpace(token) == "" {
				return fmt.Errorf("--token is required")
			}
			return store.Set(localstore.KeyAuthToken, token)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token issued by the marketplace")
	return cmd
}

func newLogoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := localstore.Open(cfg.StatePath)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.ClearSession()
		},
	}
}

func newStatusCmd(configPath, role, projectID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			shell, err := openShell(*configPath, *role, *projectID)
			if err != nil {
				return err
			}
			defer shell.Close()

			if shell.Projects.Missing() {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects yet")
				return nil
			}
			p, ok := shell.Projects.Project()
			if !ok {
				return fmt.Errorf("project unavailable")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  [%s]\ncustomer: %s  contractor: %s\n",
				p.ShortID, p.Name, p.Status, p.CustomerName, p.ContractorName)
			return nil
		},
	}
}

func newProjectCmd(configPath, role, projectID *string) *cobra.Command {
	var status, message string
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Show the project, optionally moving it to a new status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			shell, err := openShell(*configPath, *role, *projectID)
			if err != nil {
				return err
			}
			defer shell.Close()

			if status != "" {
				if err := shell.Projects.Transition(context.Background(), status, message); err != nil {
					return err
				}
			}
			p, ok := shell.Projects.Project()
			if !ok {
				return fmt.Errorf("project unavailable")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  [%s]\ncreated %s\n",
				p.ShortID, p.Name, p.Status, p.CreatedDate.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "move the project to this status (e.g. active)")
	cmd.Flags().StringVar(&message, "message", "", "optional note for the transition")
	return cmd
}

func newTasksCmd(configPath, role, projectID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the project's tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			shell, err := openShell(*configPath, *role, *projectID)
			if err != nil {
				return err
			}
			defer shell.Close()

			for _, t := range shell.Tasks.Tasks() {
				marks := ""
				if len(t.VerificationRequests) > 0 {
					marks = " verify:" + strings.Join(t.VerificationRequests, ",")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-30s %s%s\n", t.Status, t.Title, due(t.DueDate), marks)
			}
			return nil
		},
	}
}

func due(d *time.Time) string {
	if d == nil {
		return ""
	}
	return "due " + d.Format("2006-01-02")
}

func newProductsCmd(configPath, role, projectID *string) *cobra.Command {
	var toggle string
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List catalog products, optionally toggling one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			shell, err := openShell(*configPath, *role, *projectID)
			if err != nil {
				return err
			}
			defer shell.Close()

			if toggle != "" {
				seq := shell.ToggleProduct(context.Background(), toggle)
				fmt.Fprintf(cmd.OutOrStdout(), "selection change #%d\n", seq)
			}
			for _, p := range shell.Products.Products() {
				mark := " "
				if shell.Products.Selected(p.ID) {
					mark = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-10s %-25s %s  %s\n",
					mark, p.ID, p.Name, money(p.Price), p.Brand)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&toggle, "toggle", "", "product id to add/remove")
	return cmd
}

func newQuoteCmd(configPath, role, projectID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "quote",
		Short: "Show the project quote",
		RunE: func(cmd *cobra.Command, _ []string) error {
			shell, err := openShell(*configPath, *role, *projectID)
			if err != nil {
				return err
			}
			defer shell.Close()

			q, ok := shell.Quotes.Quote()
			if !ok {
				return fmt.Errorf("no quote available")
			}
			for _, p := range q.Products {
				fmt.Fprintf(cmd.OutOrStdout(), "%-25s x%-4d %s\n", p.Name, p.Quantity, money(p.Price*int64(p.Quantity)))
			}
			for _, m := range q.Materials {
				fmt.Fprintf(cmd.OutOrStdout(), "%-25s x%-4d %s\n", m.Name, m.Quantity, money(m.Price*int64(m.Quantity)))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-30s %s\n", "labor", money(q.TotalLaborCost))
			fmt.Fprintf(cmd.OutOrStdout(), "%-30s %s\n", "total", money(quote.Total(q)))
			return nil
		},
	}
}

func newChatCmd(configPath, role, projectID *string) *cobra.Command {
	var room, attach string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a conversation and send lines from stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if room == "" {
				return fmt.Errorf("--room is required")
			}
			shell, err := openShell(*configPath, *role, *projectID)
			if err != nil {
				return err
			}
			defer shell.Close()

			ctx := context.Background()
			if err := shell.OpenConversation(ctx, room); err != nil {
				return err
			}
			cs := shell.Chat()
			for _, m := range cs.Messages() {
				printMessage(cmd, m)
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				var attachments []chat.Attachment
				if attach != "" {
					data, err := os.ReadFile(attach)
					if err != nil {
						return err
					}
					attachments = append(attachments, chat.Attachment{
						Filename: filepath.Base(attach),
						Content:  bytes.NewReader(data),
					})
				}
				msg, err := cs.Send(ctx, line, attachments)
				if attach != "" {
					attach = "" // attach only once
				}
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "send failed: %v\n", err)
					continue
				}
				printMessage(cmd, msg)
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "conversation id")
	cmd.Flags().StringVar(&attach, "attach", "", "file to attach to the first message")
	return cmd
}

func printMessage(cmd *cobra.Command, m gateway.Message) {
	when := m.Timestamp.Local().Format("15:04")
	line := fmt.Sprintf("[%s] %s: %s", when, m.SenderName, m.Content)
	if len(m.Attachments) > 0 {
		line += "  (" + strings.Join(m.Attachments, ", ") + ")"
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
}

func money(minor int64) string {
	return fmt.Sprintf("$%d.%02d", minor/100, minor%100)
}
