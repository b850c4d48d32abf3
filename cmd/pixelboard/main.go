package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const flagConfig = "config"

func main() {
	cobra.EnableCommandSorting = false
	log.Logger = log.With().Caller().Logger()

	rootCmd := &cobra.Command{
		Use:   "pixelboard",
		Short: "headless client for the on-chain pixel canvas",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := viper.BindPFlags(cmd.Flags())
			if err != nil {
				return err
			}
			viper.SetConfigFile(viper.GetString(flagConfig))
			return viper.ReadInConfig()
		},
	}

	rootCmd.AddCommand(
		boardCommand(),
		statsCommand(),
		cooldownCommand(),
		paintCommand(),
		watchCommand(),
	)

	rootCmd.PersistentFlags().String(flagConfig, "./config/neura_testnet/config.yaml", "config path")
	err := rootCmd.Execute()
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
