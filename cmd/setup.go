package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/applog"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/chat"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/config"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/session"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/storage"
)

// app bundles what every command needs.
type app struct {
	cfg     *config.Config
	kv      storage.KV
	session *session.Manager
	client  *api.Client
	ctrl    *chat.Controller
}

// setup loads configuration and wires storage, session and client.
// Damaged local state is reported and replaced, never fatal.
func setup(cmd *cobra.Command, cfgFile string) (*app, error) {
	cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
	if err != nil {
		return nil, err
	}

	if dir, err := config.LogDir(); err == nil {
		if err := applog.Init(dir, cfg.LogLevel); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: logging disabled: %v\n", err)
		}
	}
	applog.Info("askdata %s starting, backend %s", Version, cfg.ServerURL)

	var kv storage.KV
	if db, err := storage.Open(cfg.StatePath); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; state will not be saved\n", err)
		applog.Error("open state %s: %v", cfg.StatePath, err)
		kv = storage.NewMemory()
	} else {
		kv = db
	}

	conns, err := config.NewConnectionStore(kv)
	if err != nil {
		applog.Error("load saved connections: %v", err)
	}
	mgr, err := session.New(kv, conns)
	if err != nil {
		applog.Error("load session: %v", err)
	}

	client, err := api.New(api.Options{
		BaseURL:  cfg.ServerURL,
		Tokens:   mgr,
		RetryMax: cfg.RetryMax,
	})
	if err != nil {
		kv.Close()
		return nil, err
	}
	mgr.SetBackend(client)

	return &app{
		cfg:     cfg,
		kv:      kv,
		session: mgr,
		client:  client,
		ctrl:    chat.NewController(cfg.MaxUploadBytes()),
	}, nil
}

// Close releases the state store and the log file.
func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		applog.Error("close state: %v", err)
	}
	applog.Info("askdata stopped")
	applog.Close()
}
