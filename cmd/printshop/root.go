package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eringen/printshop"
	"github.com/eringen/printshop/sectioncache"
)

type cli struct {
	cfgFile string
	cfg     printshop.SiteConfig
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "printshop",
		Short: "Homepage composition server for the print shop",
		Long: `printshop serves the admin API used to arrange homepage sections and the
product cards inside them, and the read-only JSON feed the storefront uses.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.cfgFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is ./printshop.yaml)")

	root.AddCommand(newServeCmd(c), newImportCmd(c), newVersionCmd())
	return root
}

func loadConfig(cfgFile string) (printshop.SiteConfig, error) {
	v := viper.New()

	v.SetDefault("name", "Gráfica")
	v.SetDefault("url", "http://localhost:3000")
	v.SetDefault("addr", ":3000")
	v.SetDefault("databasePath", "data/printshop.db")
	v.SetDefault("activityEnabled", true)
	v.SetDefault("activityDatabasePath", "data/activity.db")
	v.SetDefault("activityRetentionDays", 180)
	v.SetDefault("adminUser", "admin")
	v.SetDefault("adminPassword", "")
	v.SetDefault("sessionSecret", "")
	v.SetDefault("cookieSecure", false)
	v.SetDefault("redisURL", "")
	v.SetDefault("redisChannel", sectioncache.DefaultChannel)
	v.SetDefault("logLevel", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("printshop")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PRINTSHOP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return printshop.SiteConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	}

	var cfg printshop.SiteConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return printshop.SiteConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "printshop %s\n", version)
		},
	}
}
