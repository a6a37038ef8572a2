// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/positions/common"
	"github.com/penny-vault/positions/observability/opentelemetry"
)

var shutdownTracing func(context.Context) error

func init() {
	// Logging configuration
	viper.BindEnv("log.level", "PV_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PV_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PV_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	rootCmd.PersistentFlags().Bool("log-pretty", true, "Format log messages for humans")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Tiingo
	viper.BindEnv("tiingo.token", "TIINGO_TOKEN")
	rootCmd.PersistentFlags().String("tiingo-token", "", "Tiingo API token")
	viper.BindPFlag("tiingo.token", rootCmd.PersistentFlags().Lookup("tiingo-token"))

	rootCmd.PersistentFlags().Duration("tiingo-timeout", 30*time.Second, "Timeout of each request to tiingo")
	viper.BindPFlag("tiingo.timeout", rootCmd.PersistentFlags().Lookup("tiingo-timeout"))

	rootCmd.PersistentFlags().Uint64("tiingo-max-retries", 3, "Number of times a failed tiingo request is retried")
	viper.BindPFlag("tiingo.max_retries", rootCmd.PersistentFlags().Lookup("tiingo-max-retries"))

	// Portfolio
	viper.BindEnv("portfolio.cash", "PV_CASH")
	rootCmd.PersistentFlags().Float64("cash", 10_000, "Cash used to size positions of a new portfolio")
	viper.BindPFlag("portfolio.cash", rootCmd.PersistentFlags().Lookup("cash"))

	viper.BindEnv("portfolio.weight_normalization", "PV_WEIGHT_NORMALIZATION")
	rootCmd.PersistentFlags().String("weight-normalization", "sum", "Normalize explicit weights by their `sum` or `count`")
	viper.BindPFlag("portfolio.weight_normalization", rootCmd.PersistentFlags().Lookup("weight-normalization"))

	// Cache
	rootCmd.PersistentFlags().Int("cache-local-size", 256, "Number of price histories kept in memory")
	viper.BindPFlag("cache.local_size", rootCmd.PersistentFlags().Lookup("cache-local-size"))

	rootCmd.PersistentFlags().Bool("cache-redis", false, "Cache price histories in redis")
	viper.BindPFlag("cache.redis", rootCmd.PersistentFlags().Lookup("cache-redis"))

	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("cache-redis-url", "redis://localhost:6379/0", "Redis connection string")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("cache-redis-url"))

	rootCmd.PersistentFlags().Duration("cache-ttl", 24*time.Hour, "Lifetime of price histories cached in redis")
	viper.BindPFlag("cache.ttl", rootCmd.PersistentFlags().Lookup("cache-ttl"))

	// NATS audit trail
	viper.BindEnv("nats.server", "NATS_SERVER")
	rootCmd.PersistentFlags().String("nats-server", "", "NATS server to publish position audit events to, if blank events are logged")
	viper.BindPFlag("nats.server", rootCmd.PersistentFlags().Lookup("nats-server"))

	viper.BindEnv("nats.credentials", "NATS_CREDENTIALS")
	rootCmd.PersistentFlags().String("nats-credentials", "", "NATS user credentials file")
	viper.BindPFlag("nats.credentials", rootCmd.PersistentFlags().Lookup("nats-credentials"))

	rootCmd.PersistentFlags().String("nats-audit-subject", "positions.audit", "JetStream subject audit events are published to")
	viper.BindPFlag("nats.audit_subject", rootCmd.PersistentFlags().Lookup("nats-audit-subject"))

	// OpenTelemetry
	viper.BindEnv("otlp.endpoint", "OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP collector to send traces to, if blank tracing is disabled")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	rootCmd.PersistentFlags().Bool("otlp-http", false, "Use HTTP instead of gRPC for the OTLP connection")
	viper.BindPFlag("otlp.http", rootCmd.PersistentFlags().Lookup("otlp-http"))

	// market
	viper.BindEnv("market.holidays", "PV_MARKET_HOLIDAYS")
	rootCmd.PersistentFlags().StringSlice("market-holidays", []string{}, "Comma separated YYYY-MM-DD dates the market is closed")
	viper.BindPFlag("market.holidays", rootCmd.PersistentFlags().Lookup("market-holidays"))
}

var rootCmd = &cobra.Command{
	Use:     common.ProgramName,
	Version: common.CurrentVersion.String(),
	Short:   "Track positions and portfolios of securities",
	Long: `Record the trades made against positions, roll positions together, build
equal or custom weighted portfolios and value them against end-of-day prices.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		if err := loadMarketHolidays(); err != nil {
			log.Fatal().Err(err).Msg("could not load market holidays")
		}

		if viper.GetString("otlp.endpoint") != "" {
			shutdown, err := opentelemetry.Setup()
			if err != nil {
				log.Error().Err(err).Msg("could not setup tracing")
				return
			}
			shutdownTracing = shutdown
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTracing == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Error().Err(err).Msg("could not flush traces")
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
