package main

import (
	"flag"
	"os"
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr []string
	}{
		{
			name: "valid config, not backtest",
			cfg: Config{
				StrategyFilePath: "/tmp/strategy.json",
				ExchangeBaseURL:  "http://exchange",
				ExchangeWSURL:    "ws://exchange",
				ExchangeAPIKey:   "apikey",
				Backtest:         false,
			},
			wantErr: nil,
		},
		{
			name: "missing strategy filepath",
			cfg: Config{
				ExchangeBaseURL: "http://exchange",
				ExchangeWSURL:   "ws://exchange",
				ExchangeAPIKey:  "apikey",
			},
			wantErr: []string{"strategy filepath cannot be an empty string"},
		},
		{
			name: "missing exchange config, not backtest",
			cfg: Config{
				StrategyFilePath: "/tmp/strategy.json",
			},
			wantErr: []string{
				"exchange base url cannot be an empty string",
				"exchange websocket url cannot be an empty string",
				"exchange api key cannot be an empty string",
			},
		},
		{
			name: "backtest true, valid filepath",
			cfg: Config{
				StrategyFilePath:     "/tmp/strategy.json",
				Backtest:             true,
				BacktestDataFilepath: "/tmp/data.json",
			},
			wantErr: nil,
		},
		{
			name: "backtest true, missing filepath",
			cfg: Config{
				StrategyFilePath: "/tmp/strategy.json",
				Backtest:         true,
			},
			wantErr: []string{"backtest data filepath cannot be an empty string"},
		},
		{
			name: "backtest true, exchange fields missing",
			cfg: Config{
				StrategyFilePath:     "/tmp/strategy.json",
				Backtest:             true,
				BacktestDataFilepath: "/tmp/data.json",
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("expected error(s) %v, got none", tt.wantErr)
					return
				}
				for _, want := range tt.wantErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("expected error to contain %q, got %v", want, err)
					}
				}
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	// Save and restore original os.Args and environment
	origArgs := os.Args
	origEnv := os.Environ()
	defer func() {
		os.Args = origArgs
		for _, kv := range origEnv {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				os.Setenv(parts[0], parts[1])
			}
		}
	}()

	tests := []struct {
		name        string
		env         map[string]string
		args        []string
		expectErr   bool
		expectInErr []string
		expectCfg   Config
	}{
		{
			name: "all from env, not backtest",
			env: map[string]string{
				"strategy":        "/tmp/strategy.json",
				"exchangebaseurl": "http://exchange",
				"exchangewsurl":   "ws://exchange",
				"exchangeapikey":  "apikey",
				"backtest":        "false",
			},
			args:      []string{"cmd"},
			expectErr: false,
			expectCfg: Config{
				StrategyFilePath: "/tmp/strategy.json",
				ExchangeBaseURL:  "http://exchange",
				ExchangeWSURL:    "ws://exchange",
				ExchangeAPIKey:   "apikey",
				Backtest:         false,
			},
		},
		{
			name: "all from flags, not backtest",
			env:  map[string]string{},
			args: []string{"cmd", "-strategy=/tmp/strategy.json", "-exchangebaseurl=http://exchange",
				"-exchangewsurl=ws://exchange", "-exchangeapikey=apikey", "-backtest=false"},
			expectErr: false,
			expectCfg: Config{
				StrategyFilePath: "/tmp/strategy.json",
				ExchangeBaseURL:  "http://exchange",
				ExchangeWSURL:    "ws://exchange",
				ExchangeAPIKey:   "apikey",
				Backtest:         false,
			},
		},
		{
			name:        "missing strategy and exchange config",
			env:         map[string]string{},
			args:        []string{"cmd"},
			expectErr:   true,
			expectInErr: []string{"strategy filepath cannot be an empty string", "exchange api key cannot be an empty string"},
		},
		{
			name: "backtest true, missing filepath",
			env: map[string]string{
				"strategy": "/tmp/strategy.json",
				"backtest": "true",
			},
			args:        []string{"cmd"},
			expectErr:   true,
			expectInErr: []string{"backtest data filepath cannot be an empty string"},
		},
		{
			name: "backtest true, filepath from flag",
			env: map[string]string{
				"strategy": "/tmp/strategy.json",
				"backtest": "true",
			},
			args:      []string{"cmd", "-backtestdatafilepath=/tmp/data.json"},
			expectErr: false,
			expectCfg: Config{
				StrategyFilePath:     "/tmp/strategy.json",
				Backtest:             true,
				BacktestDataFilepath: "/tmp/data.json",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset flags for each test
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			// Set environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			// Set command-line arguments
			os.Args = tt.args

			var cfg Config
			err := loadConfig(&cfg, "") // don't load .env file

			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				for _, want := range tt.expectInErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("expected error to contain %q, got %v", want, err)
					}
				}
			} else {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if cfg.StrategyFilePath != tt.expectCfg.StrategyFilePath {
					t.Errorf("StrategyFilePath: got %v, want %v", cfg.StrategyFilePath, tt.expectCfg.StrategyFilePath)
				}
				if tt.expectCfg.ExchangeAPIKey != "" && cfg.ExchangeAPIKey != tt.expectCfg.ExchangeAPIKey {
					t.Errorf("ExchangeAPIKey: got %v, want %v", cfg.ExchangeAPIKey, tt.expectCfg.ExchangeAPIKey)
				}
				if cfg.Backtest != tt.expectCfg.Backtest {
					t.Errorf("Backtest: got %v, want %v", cfg.Backtest, tt.expectCfg.Backtest)
				}
				if tt.expectCfg.BacktestDataFilepath != "" && cfg.BacktestDataFilepath != tt.expectCfg.BacktestDataFilepath {
					t.Errorf("BacktestDataFilepath: got %v, want %v", cfg.BacktestDataFilepath, tt.expectCfg.BacktestDataFilepath)
				}
			}

			// Clean up env
			for k := range tt.env {
				os.Unsetenv(k)
			}
		})
	}
}
