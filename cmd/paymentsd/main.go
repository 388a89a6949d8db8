package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	envFiles []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "paymentsd",
		Short:         "Payment provider webhooks and commands",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load before the process environment (default .env when present)")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(checkConfigCmd(opts))
	rootCmd.AddCommand(purgeCmd(opts))
	return rootCmd
}

func (o *rootOptions) settings() (settings, error) {
	env, err := loadEnv(o.envFiles, environ())
	if err != nil {
		return settings{}, err
	}
	return parseSettings(env)
}
