// Copyright 2023-2024 daviszhen
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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/daviszhen/aggr/pkg/common"
	"github.com/daviszhen/aggr/pkg/driver"
	"github.com/daviszhen/aggr/pkg/util"
)

var cfgFile string
var columns []int
var types []string

var info = "aggr"
var RootCmd = &cobra.Command{
	Use:          "aggr",
	Short:        "multi-stage columnar aggregation over parquet files",
	Long:         info,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("use aggr --help or -h")
	},
}

var sumCmd = &cobra.Command{
	Use:   "sum",
	Short: "sum parquet columns through the leaf and merge stages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSum(cmd.Context(), false)
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "print the stage topology of a sum",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSum(cmd.Context(), true)
	},
}

func init() {
	viper.SetEnvPrefix("AGGR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "toml config file (default ./aggr.toml or etc/aggr.toml)")
	RootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error")
	RootCmd.PersistentFlags().String("file", "", "parquet file path")
	RootCmd.PersistentFlags().IntSliceVar(&columns, "column", []int{0}, "parquet leaf column indexes")
	RootCmd.PersistentFlags().StringSliceVar(&types, "type", []string{"int"}, "element type per column: int, long or double")
	RootCmd.PersistentFlags().Int("partitions", 0, "leaf stage partitions")
	RootCmd.PersistentFlags().Int("page-size", 0, "rows per page")
	RootCmd.PersistentFlags().String("compression", "", "exchange compression: zstd or none")
	RootCmd.PersistentFlags().Bool("check-owner", false, "assert single goroutine ownership of aggregator functions")
	RootCmd.PersistentFlags().Bool("print-result", false, "log the result page")

	bindFlag("log.level", "log-level")
	bindFlag("source.path", "file")
	bindFlag("pipeline.partitions", "partitions")
	bindFlag("pipeline.pageSize", "page-size")
	bindFlag("pipeline.compression", "compression")
	bindFlag("debug.checkOwner", "check-owner")
	bindFlag("debug.printResult", "print-result")

	RootCmd.AddCommand(sumCmd, explainCmd)
}

func bindFlag(key, flag string) {
	err := viper.BindPFlag(key, RootCmd.PersistentFlags().Lookup(flag))
	if err != nil {
		panic(err)
	}
}

var defCfgFilePaths = []string{".", "etc"}
var cfgFileName = "aggr.toml"

// loadConfig reads the toml file, if any, then applies environment and
// flag overrides.
func loadConfig() (*util.Config, error) {
	cfg := util.DefaultConfig()
	fpath := cfgFile
	if fpath == "" {
		for _, dirPath := range defCfgFilePaths {
			if p := filepath.Join(dirPath, cfgFileName); util.FileIsValid(p) {
				fpath = p
				break
			}
		}
	}
	if fpath != "" {
		var err error
		cfg, err = util.LoadConfig(fpath)
		if err != nil {
			util.Error("load config file failed",
				zap.String("fpath", fpath),
				zap.Error(err))
			return nil, err
		}
	}
	if viper.IsSet("log.level") {
		cfg.Log.Level = viper.GetString("log.level")
	}
	if viper.IsSet("source.path") {
		cfg.Source.Path = viper.GetString("source.path")
	}
	if viper.IsSet("pipeline.partitions") {
		cfg.Pipeline.Partitions = viper.GetInt("pipeline.partitions")
	}
	if viper.IsSet("pipeline.pageSize") {
		cfg.Pipeline.PageSize = viper.GetInt("pipeline.pageSize")
	}
	if viper.IsSet("pipeline.compression") {
		cfg.Pipeline.Compression = viper.GetString("pipeline.compression")
	}
	if viper.IsSet("debug.checkOwner") {
		cfg.Debug.CheckOwner = viper.GetBool("debug.checkOwner")
	}
	if viper.IsSet("debug.printResult") {
		cfg.Debug.PrintResult = viper.GetBool("debug.printResult")
	}
	return cfg, cfg.Validate()
}

func buildSpecs() ([]driver.AggregateSpec, []driver.ParquetColumn, error) {
	if len(columns) != len(types) {
		return nil, nil, fmt.Errorf("%d columns but %d types", len(columns), len(types))
	}
	specs := make([]driver.AggregateSpec, len(columns))
	cols := make([]driver.ParquetColumn, len(columns))
	for i, col := range columns {
		typ, err := common.ParseElementType(types[i])
		if err != nil {
			return nil, nil, err
		}
		cols[i] = driver.ParquetColumn{Index: col, Typ: typ}
		specs[i] = driver.AggregateSpec{Name: "sum", Typ: typ, Channel: i}
	}
	return specs, cols, nil
}

func runSum(ctx context.Context, explain bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err = util.InitLogger(cfg.Log.Level); err != nil {
		return err
	}
	defer util.Sync()
	util.EnableOwnerCheck(cfg.Debug.CheckOwner)

	specs, cols, err := buildSpecs()
	if err != nil {
		return err
	}
	if cfg.Source.Path == "" {
		return fmt.Errorf("no input file, use --file or source.path")
	}
	src, err := driver.NewParquetSource(cfg.Source.Path, cols, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	pipeline, err := driver.NewPipeline(specs, cfg, nil)
	if err != nil {
		return err
	}
	if explain {
		fmt.Println(pipeline.Explain(src))
		return nil
	}
	out, err := pipeline.Run(ctx, src)
	if err != nil {
		return err
	}
	for i, spec := range specs {
		fmt.Printf("sum(column %d) = %s\n", cols[spec.Channel].Index, out.GetBlock(i).ValueString(0))
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
