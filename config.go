package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind    string
	port    int
	prefix  string
	profile bool
	tlsCert string
	tlsKey  string
	verbose bool
	version bool

	dbPath    string
	redisAddr string

	initialScore    int
	minScore        int
	maxRounds       int
	historyLimit    int
	leaderboardSize int
	turnTimeout     time.Duration

	rewardBothCooperate int
	rewardBothBetray    int
	rewardBetray        int
	rewardCooperate     int
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.historyLimit < 1 {
		return fmt.Errorf("invalid history limit (must be at least 1): %d", c.historyLimit)
	}
	if c.maxRounds < 1 {
		return fmt.Errorf("invalid round limit (must be at least 1): %d", c.maxRounds)
	}
	if c.leaderboardSize < 1 {
		return fmt.Errorf("invalid leaderboard size (must be at least 1): %d", c.leaderboardSize)
	}
	if c.initialScore <= c.minScore {
		return fmt.Errorf("initial score %d must be above the score floor %d", c.initialScore, c.minScore)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) rewards() Rewards {
	return Rewards{
		BothCooperate: c.rewardBothCooperate,
		BothBetray:    c.rewardBothBetray,
		Betray:        c.rewardBetray,
		Cooperate:     c.rewardCooperate,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRUSTPVP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "trustpvp",
		Short:         "A continuous iterated prisoner's dilemma tournament, served over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRUSTPVP_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TRUSTPVP_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TRUSTPVP_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TRUSTPVP_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TRUSTPVP_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TRUSTPVP_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TRUSTPVP_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TRUSTPVP_VERSION)")

	fs.StringVar(&cfg.dbPath, "db", "trust.db", "path to the bolt database file, empty for in-memory only (env: TRUSTPVP_DB)")
	fs.StringVar(&cfg.redisAddr, "redis", "", "redis address, overrides --db when set (env: TRUSTPVP_REDIS)")

	fs.IntVar(&cfg.initialScore, "initial-score", 100, "starting score for new players (env: TRUSTPVP_INITIAL_SCORE)")
	fs.IntVar(&cfg.minScore, "min-score", 0, "score floor that ends a player's game (env: TRUSTPVP_MIN_SCORE)")
	fs.IntVar(&cfg.maxRounds, "max-rounds", 20, "round ceiling that ends a player's game (env: TRUSTPVP_MAX_ROUNDS)")
	fs.IntVar(&cfg.historyLimit, "history-limit", 20, "most recent rounds retained per player (env: TRUSTPVP_HISTORY_LIMIT)")
	fs.IntVar(&cfg.leaderboardSize, "leaderboard-size", 10, "number of players on the leaderboard (env: TRUSTPVP_LEADERBOARD_SIZE)")
	fs.DurationVar(&cfg.turnTimeout, "turn-timeout", 0, "time before a pending round is forfeited, 0 to wait forever (env: TRUSTPVP_TURN_TIMEOUT)")

	fs.IntVar(&cfg.rewardBothCooperate, "reward-both-cooperate", 5, "score delta for each side of mutual cooperation (env: TRUSTPVP_REWARD_BOTH_COOPERATE)")
	fs.IntVar(&cfg.rewardBothBetray, "reward-both-betray", -3, "score delta for each side of mutual betrayal (env: TRUSTPVP_REWARD_BOTH_BETRAY)")
	fs.IntVar(&cfg.rewardBetray, "reward-betray", 10, "score gained by a lone defector (env: TRUSTPVP_REWARD_BETRAY)")
	fs.IntVar(&cfg.rewardCooperate, "reward-cooperate", 10, "score lost by a betrayed cooperator (env: TRUSTPVP_REWARD_COOPERATE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("trustpvp v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
