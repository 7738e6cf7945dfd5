// Command ledgerquery is the node CLI: it bootstraps keys, serves the
// query transport over the flat-file block store, and issues queries
// against a running node, over HTTPTransport (core/transport.go) rather
// than a gRPC transport.
package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ledgerquery/core"
	"ledgerquery/pkg/config"
)

func main() {
	log := logrus.New()
	rootCmd := &cobra.Command{Use: "ledgerquery"}
	rootCmd.PersistentFlags().String("config", "", "config environment name merged over config/default.yaml, e.g. \"production\"")

	rootCmd.AddCommand(keygenCmd(log))
	rootCmd.AddCommand(serveCmd(log))
	rootCmd.AddCommand(queryCmd(log))

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("fatal")
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	env, _ := cmd.Flags().GetString("config")
	return config.Load(env)
}

func keygenCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "create or load an encrypted client keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			passphrase, _ := cmd.Flags().GetString("pass_phrase")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			cfg, err := loadConfig(cmd)
			dir := "keystore"
			if err == nil && cfg.Keystore.Dir != "" {
				dir = cfg.Keystore.Dir
			}
			km, err := core.NewFileKeysManager(dir)
			if err != nil {
				return err
			}
			created, err := km.CreateKeys(name, passphrase)
			if err != nil {
				return err
			}
			if !created {
				log.WithField("name", name).Info("keys already present")
				return nil
			}
			log.WithField("name", name).Info("created new keypair")
			return nil
		},
	}
	cmd.Flags().String("name", "", "key name")
	cmd.Flags().String("pass_phrase", "", "keystore passphrase")
	return cmd
}

func serveCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the block/transaction query transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if level, lerr := logrus.ParseLevel(cfg.Logging.Level); lerr == nil {
				log.SetLevel(level)
			}

			address, _ := cmd.Flags().GetString("address")
			if address == "" {
				address = cfg.Query.ListenAddr
			}
			toriiPort, _ := cmd.Flags().GetInt("torii_port")
			if toriiPort == 0 {
				toriiPort = cfg.Query.ToriiPort
			}
			if toriiPort != 0 && (toriiPort < 1 || toriiPort > 65535) {
				return fmt.Errorf("--torii_port must be in 1..65535, got %d", toriiPort)
			}
			genesisBlock, _ := cmd.Flags().GetString("genesis_block")
			if genesisBlock == "" {
				genesisBlock = cfg.Query.GenesisFile
			}

			store, err := core.NewFlatFileBlockStore(cfg.Store.Dir, log)
			if err != nil {
				return err
			}
			var seed *core.GenesisSeed
			if genesisBlock != "" {
				seed, err = core.LoadGenesisSeed(genesisBlock)
				if err != nil {
					return err
				}
			}
			stateView, err := core.NewReplayStateView(store, seed, log)
			if err != nil {
				return err
			}
			metrics := core.NewMetrics(prometheus.NewRegistry())
			eval := core.NewEvaluator(store, stateView, log, metrics)
			transport := core.NewHTTPTransport(eval, log)

			log.WithField("address", address).Info("starting query service")
			return transport.Serve(address)
		},
	}
	cmd.Flags().String("address", "", "listen address, e.g. :8080")
	cmd.Flags().Int("torii_port", 0, "reserved Torii (gRPC) port, validated but unused by this transport")
	cmd.Flags().String("genesis_block", "", "path to a YAML genesis seed fixture")
	return cmd
}

func queryCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "send a JSON query to a running node and print the response",
		RunE: func(cmd *cobra.Command, args []string) error {
			address, _ := cmd.Flags().GetString("address")
			jsonQuery, _ := cmd.Flags().GetString("json_query")
			if address == "" || jsonQuery == "" {
				return fmt.Errorf("--address and --json_query are required")
			}

			payload := []byte(jsonQuery)
			name, _ := cmd.Flags().GetString("name")
			if name != "" {
				// Sign client-side with the keystore keypair: decode the
				// query, replace its signature with one over the identity
				// hash, and re-encode before sending.
				passphrase, _ := cmd.Flags().GetString("pass_phrase")
				cfg, err := loadConfig(cmd)
				dir := "keystore"
				if err == nil && cfg.Keystore.Dir != "" {
					dir = cfg.Keystore.Dir
				}
				km, err := core.NewFileKeysManager(dir)
				if err != nil {
					return err
				}
				kp, ok, err := km.LoadKeys(name, passphrase)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no keys for %q; run keygen first", name)
				}
				q, err := core.DecodeJSON(payload)
				if err != nil {
					return err
				}
				q.Signature = core.Sign(kp.PrivKey[:], kp.PubKey, q.Hash())
				payload, err = core.EncodeJSON(q)
				if err != nil {
					return err
				}
			}

			resp, err := http.Post(
				fmt.Sprintf("http://%s/query/json", address),
				"application/json",
				bytes.NewReader(payload),
			)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			fmt.Println(string(body))
			return nil
		},
	}
	cmd.Flags().String("address", "", "node address, e.g. localhost:8080")
	cmd.Flags().String("json_query", "", "JSON-encoded query body")
	cmd.Flags().String("name", "", "keystore key name to sign the query with")
	cmd.Flags().String("pass_phrase", "", "keystore passphrase")
	return cmd
}
