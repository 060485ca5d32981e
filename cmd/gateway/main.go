// Command gateway is the process entrypoint: it loads configuration, dials
// the upstream node, wires the nonce/price caches, the signer, the
// transaction pipeline, the event-log callback engine and the HTTP front
// together, and runs until signaled.
//
// This file is deliberately the one place in the repository allowed to know
// about every other package at once; none of the core packages import it or
// each other's siblings beyond what their own algorithms need.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/template"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ethgate/gateway/abi"
	"github.com/ethgate/gateway/api"
	"github.com/ethgate/gateway/cache"
	"github.com/ethgate/gateway/callback"
	"github.com/ethgate/gateway/chainutil"
	"github.com/ethgate/gateway/config"
	"github.com/ethgate/gateway/crypto/signatures/ethereum"
	"github.com/ethgate/gateway/log"
	"github.com/ethgate/gateway/node"
	"github.com/ethgate/gateway/pipeline"
	"github.com/ethgate/gateway/query"
	"github.com/ethgate/gateway/rpc"
	"github.com/ethgate/gateway/signer"
	"github.com/ethgate/gateway/templating"
	"github.com/ethgate/gateway/util"
)

const (
	nonceCacheCapacity = 1024
	priceCacheCapacity = 16
	sendRetries        = 3
	sendRetryUnit      = 127 * time.Millisecond
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel, cfg.LogOutput, os.Stderr)
	log.Infow("starting gateway", "nodeUrl", cfg.NodeURL, "listen", fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := loadKey(cfg)
	if err != nil {
		log.Fatalf("load signing key: %v", err)
	}
	log.Infow("signer address derived", "address", key.Address().Hex())

	transport, err := rpc.Dial(ctx, cfg.NodeURL)
	if err != nil {
		log.Fatalf("dial upstream node %s: %v", cfg.NodeURL, err)
	}
	client := node.NewClient(transport)

	whitelist := make([]common.Address, len(cfg.Whitelist))
	for i, a := range cfg.Whitelist {
		whitelist[i] = common.HexToAddress(a)
	}
	contracts := signer.NewContracts(whitelist)
	if cfg.Default != "" {
		if err := contracts.SetDefault(common.HexToAddress(cfg.Default)); err != nil {
			log.Fatalf("configure default contract: %v", err)
		}
	}

	s := signer.New(signer.Config{
		Key:                   key,
		Contracts:             contracts,
		Functions:             cfg.Functions(),
		Tokens:                cfg.Tokens(),
		AllowRawSigning:       cfg.AllowRawSigning,
		AllowContractCreation: cfg.AllowCreation,
	})

	nonceCache, err := cache.NewNonceCache(func(ctx context.Context, addr common.Address) (*big.Int, error) {
		return client.GetTransactionCount(ctx, addr, rpc.Latest())
	}, nonceCacheCapacity)
	if err != nil {
		log.Fatalf("build nonce cache: %v", err)
	}
	priceCache, err := cache.NewPriceCache(func(ctx context.Context, _ string) (*big.Int, error) {
		return client.GasPrice(ctx)
	}, priceCacheCapacity)
	if err != nil {
		log.Fatalf("build price cache: %v", err)
	}

	sender := func(ctx context.Context, raw []byte) (common.Hash, error) {
		return chainutil.Retry(ctx, sendRetries, sendRetryUnit, func(ctx context.Context) (common.Hash, error) {
			return client.SendRawTransaction(ctx, raw)
		})
	}
	txPipeline := pipeline.New(s, cfg.NodeURL, nonceCache, priceCache, sender)
	defer txPipeline.Close()

	events := cfg.Events()
	tmpl, err := loadTemplates(cfg.TemplateDir)
	if err != nil {
		log.Fatalf("load templates: %v", err)
	}
	eventSpecs := make([]templating.EventSpec, len(events))
	for i, e := range events {
		eventSpecs[i] = templating.EventSpec{Event: e, Template: cfg.EventSpecs[i].Template}
	}
	templater := templating.New(eventSpecs, tmpl)

	stdout := callback.NewStdout(os.Stdout)
	defer stdout.Close()
	engine := callback.New(client, templater, nil, stdout)

	for _, cbCfg := range cfg.Callbacks {
		job, err := buildJob(cbCfg, events)
		if err != nil {
			log.Fatalf("configure callback %q: %v", cbCfg.Endpoint, err)
		}
		go func(j callback.Job) {
			if err := engine.Run(ctx, j); err != nil && ctx.Err() == nil {
				log.Errorw(err, "callback job exited")
			}
		}(job)
	}

	queryEncoder := query.NewEncoder(events)
	queryOrigin := make([]common.Address, len(cfg.EventsOrigin))
	for i, a := range cfg.EventsOrigin {
		queryOrigin[i] = common.HexToAddress(a)
	}
	queryService := query.NewService(queryEncoder, client, templater, queryOrigin)

	server, err := api.New(ctx, &api.Config{
		Host:      cfg.ListenHost,
		Port:      cfg.ListenPort,
		Signer:    s,
		Pipeline:  txPipeline,
		Client:    client,
		Query:     queryService,
		Functions: cfg.Functions(),
	})
	if err != nil {
		log.Fatalf("start API server: %v", err)
	}
	_ = server

	<-ctx.Done()
	log.Infow("shutting down gateway")
}

// loadKey resolves the signer's private key per the configuration source
// precedence: a literal hex value, a key file (read if present, generated
// and persisted otherwise), an environment variable, or finally a random
// ephemeral key logged loudly since it will not survive a restart.
func loadKey(cfg *config.Config) (*ethereum.Signer, error) {
	if cfg.KeyHex != "" {
		return ethereum.NewSignerFromHex(util.TrimHex(cfg.KeyHex))
	}
	if cfg.KeyFile != "" {
		data, err := os.ReadFile(cfg.KeyFile)
		if err == nil {
			return ethereum.NewSignerFromHex(util.TrimHex(strings.TrimSpace(string(data))))
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read key file %s: %w", cfg.KeyFile, err)
		}
		key, err := ethereum.NewSigner()
		if err != nil {
			return nil, err
		}
		hexKey := key.HexPrivateKey()
		if err := os.WriteFile(cfg.KeyFile, []byte(hexKey.Hex()), 0o600); err != nil {
			return nil, fmt.Errorf("persist generated key to %s: %w", cfg.KeyFile, err)
		}
		log.Warnw("generated and cached a new signing key", "path", cfg.KeyFile)
		return key, nil
	}
	if envKey := os.Getenv("ETHGATE_SIGNER_KEY"); envKey != "" {
		return ethereum.NewSignerFromHex(util.TrimHex(envKey))
	}
	log.Warnw("no signing key configured, generating a random ephemeral key")
	return ethereum.NewSigner()
}

// loadTemplates walks cfg's template directory for named template files, as
// spec.md §6 describes. An empty directory yields an empty, still-usable
// template set (useful for signer-only deployments with no callbacks).
func loadTemplates(dir string) (*template.Template, error) {
	root := template.New("templates")
	if dir == "" {
		return root, nil
	}
	pattern := filepath.Join(dir, "*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob templates in %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return root, nil
	}
	return root.ParseGlob(pattern)
}

// buildJob resolves one callback configuration against the known event
// registry and assigns it a stable per-process correlation id.
func buildJob(cb config.CallbackSpec, events []abi.Event) (callback.Job, error) {
	byName := make(map[string]abi.Event, len(events))
	for _, e := range events {
		byName[e.Name] = e
	}

	watched := make([]abi.Event, 0, len(cb.Events))
	for _, name := range cb.Events {
		e, ok := byName[name]
		if !ok {
			return callback.Job{}, fmt.Errorf("callback references unknown event %q", name)
		}
		watched = append(watched, e)
	}

	origin := make([]common.Address, len(cb.Origin))
	for i, o := range cb.Origin {
		origin[i] = common.HexToAddress(o)
	}

	endpoint := callback.Endpoint{Kind: callback.EndpointURI, URI: config.ExpandEndpoint(cb.Endpoint)}
	if cb.Endpoint == "stdout" {
		endpoint = callback.Endpoint{Kind: callback.EndpointStdout}
	}

	return callback.Job{
		ID:       uuid.New(),
		Endpoint: endpoint,
		Origin:   origin,
		Events:   watched,
		Start:    new(big.Int).SetUint64(cb.Start),
		Poll:     cb.Poll(),
		Lag:      cb.Lag,
	}, nil
}
