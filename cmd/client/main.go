// Package main 是文档向量服务命令行客户端的入口。
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docvector-go/internal/client"
	"docvector-go/internal/config"
	"docvector-go/internal/model"
	"docvector-go/pkg/kafka"
)

var (
	serverURL string
	timeout   time.Duration

	searchK   int
	similarK  int
	deleteYes bool
	tagPairs  []string

	eventBrokers []string
	eventTopic   string
	eventGroup   string
)

var rootCmd = &cobra.Command{
	Use:           "docvector",
	Short:         "Client for the document vector service",
	Long:          `Uploads documents, runs semantic search and manages the index. Without a sub-command it starts the interactive console.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return client.NewConsole(newAPI(), cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newAPI().Health(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("%s: %s\n", res.Service, res.Status)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload [path]",
	Short: "Upload and index a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.ValidateFileType(args[0], client.DefaultExtensions); err != nil {
			return err
		}
		tags, err := parseTags(tagPairs)
		if err != nil {
			return err
		}
		res, err := newAPI().Upload(cmd.Context(), args[0], tags)
		if err != nil {
			return err
		}
		cmd.Println(client.FormatUpload(res))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newAPI().List(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Println(client.FormatDocuments(res))
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Semantic search over indexed chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := parseTags(tagPairs)
		if err != nil {
			return err
		}
		res, err := newAPI().Search(cmd.Context(), strings.Join(args, " "), searchK, filter)
		if err != nil {
			return err
		}
		cmd.Println(client.FormatSearch(res))
		return nil
	},
}

var similarCmd = &cobra.Command{
	Use:   "similar [doc-id]",
	Short: "Find documents similar to a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newAPI().Similar(cmd.Context(), args[0], similarK)
		if err != nil {
			return err
		}
		cmd.Println(client.FormatSimilar(res))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and all its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docID := args[0]
		if !deleteYes {
			cmd.Printf("Are you sure you want to delete %s? (y/N): ", docID)
			var answer string
			_, _ = fmt.Fscanln(cmd.InOrStdin(), &answer)
			if !client.Confirmed(answer) {
				cmd.Println("Delete cancelled.")
				return nil
			}
		}
		if err := newAPI().Delete(cmd.Context(), docID); err != nil {
			return err
		}
		cmd.Printf("Document %s deleted.\n", docID)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector store statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newAPI().Stats(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Println(client.FormatStats(res))
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow document lifecycle events from Kafka",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(eventBrokers) == 0 {
			return errors.New("at least one --brokers address is required")
		}
		cfg := config.KafkaConfig{Brokers: eventBrokers, Topic: eventTopic}
		err := kafka.Consume(cmd.Context(), cfg, eventGroup, func(_ context.Context, event model.DocumentEvent) error {
			line, err := json.Marshal(event)
			if err != nil {
				return err
			}
			cmd.Println(string(line))
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	defaultServer := os.Getenv("DOCVECTOR_SERVER")
	if defaultServer == "" {
		defaultServer = client.DefaultServerURL
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "server base URL (env DOCVECTOR_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "HTTP request timeout")

	uploadCmd.Flags().StringSliceVar(&tagPairs, "tag", nil, "metadata tag key=value (repeatable)")
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 5, "number of results")
	searchCmd.Flags().StringSliceVar(&tagPairs, "filter", nil, "equality filter key=value (repeatable)")
	similarCmd.Flags().IntVarP(&similarK, "k", "k", 5, "number of similar documents")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")

	eventsCmd.Flags().StringSliceVar(&eventBrokers, "brokers", envList("KAFKA_BROKERS"), "Kafka broker addresses")
	eventsCmd.Flags().StringVar(&eventTopic, "topic", "docvector.documents", "Kafka topic")
	eventsCmd.Flags().StringVar(&eventGroup, "group", "docvector-cli", "consumer group id")

	rootCmd.AddCommand(healthCmd, uploadCmd, listCmd, searchCmd, similarCmd, deleteCmd, statsCmd, eventsCmd)
}

func envList(name string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(name), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func newAPI() *client.Client {
	return client.New(serverURL, timeout)
}

// parseTags 将 key=value 列表转换为 map。
func parseTags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid tag %q, expected key=value", p)
		}
		tags[k] = strings.TrimSpace(v)
	}
	return tags, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, client.FormatError(err))
		os.Exit(1)
	}
}
