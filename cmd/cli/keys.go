package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/npcchatter/backend/internal/infrastructure/jwks"
	"github.com/npcchatter/backend/internal/infrastructure/monitoring"
	"github.com/npcchatter/backend/internal/infrastructure/persistence/redis"
)

func newKeysCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect the identity provider's signing keys",
	}
	cmd.AddCommand(newKeysListCommand(env))
	return cmd
}

func newKeysListCommand(env *environment) *cobra.Command {
	var (
		urls    []string
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the signing keys the gateway would accept",
		Long: `Prints the RS256 keys the gateway would accept. When Redis is enabled the shared key
cache is read first, so the output matches what running instances see; --refresh always
fetches every configured key directory URL (or the ones given with --url) and updates
the shared cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := env.load()
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				urls = cfg.Identity.JWKSURLs
			}

			var redisClient goredis.UniversalClient
			if cfg.Redis.Enabled {
				conn := redis.NewRedisConnection(cfg.Redis, log)
				if err := conn.Connect(cmd.Context()); err != nil {
					return fmt.Errorf("connect to redis: %w", err)
				}
				defer conn.Close()
				redisClient = conn.GetClient()
			}

			directory, err := jwks.NewDirectory(jwks.Config{
				URLs:         urls,
				CacheTTL:     cfg.Identity.CacheTTL,
				FetchTimeout: cfg.Identity.FetchTimeout,
			}, redisClient, monitoring.NewNoopMetrics(), log)
			if err != nil {
				return err
			}

			fetch := directory.Snapshot
			if refresh {
				fetch = directory.Refresh
			}
			set, err := fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch key directory: %w", err)
			}

			ids := set.KeyIDs()
			sort.Strings(ids)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KID\tALG\tBITS")
			for _, id := range ids {
				k, _ := set.Lookup(id)
				fmt.Fprintf(w, "%s\t%s\t%d\n", k.KeyID, k.Algorithm, k.PublicKey.N.BitLen())
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&urls, "url", nil, "key directory URL (repeatable); defaults to identity.jwks_urls")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the shared cache and fetch from the identity provider")
	return cmd
}
