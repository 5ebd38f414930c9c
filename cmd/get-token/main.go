// Requests a Mercado Libre access token and stores it as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"meli-inventory-sync/internal/adapters/mercadolibre"
	"meli-inventory-sync/internal/adapters/mercadolibre/dto"
	"meli-inventory-sync/internal/config"
	infrahttp "meli-inventory-sync/internal/infra/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		outPath    string
		refresh    bool
	)
	flagSet := pflag.NewFlagSet("get-token", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	flagSet.StringVarP(&outPath, "out", "o", "token.json", "file to store the token response")
	flagSet.BoolVar(&refresh, "refresh", false, "use the refresh_token grant instead of client_credentials")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ml := cfg.MercadoLibre
	httpClient := infrahttp.NewClient(ml.Timeout)

	var token *dto.TokenResponse
	if refresh {
		token, err = mercadolibre.RequestRefreshToken(context.Background(), httpClient, ml.BaseUrl, ml.ClientID, ml.ClientSecret, ml.RefreshToken)
	} else {
		token, err = mercadolibre.RequestClientCredentials(context.Background(), httpClient, ml.BaseUrl, ml.ClientID, ml.ClientSecret)
	}
	if err != nil {
		if kind, details := mercadolibre.DescribeError(err); details != "" {
			return fmt.Errorf("%s: %s", kind, details)
		}
		return err
	}

	encoded, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, encoded, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	fmt.Printf("access token saved to %s (expires in %ds)\n", outPath, token.ExpiresIn)
	fmt.Println(token.AccessToken)
	return nil
}
