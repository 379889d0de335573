package cli

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vburojevic/rounds/internal/httpapi"
)

// ServeCmd hosts a session behind the HTTP control API.
type ServeCmd struct {
	SessionFlags `embed:""`

	Addr string `default:"${config_addr}" help:"Listen address"`
}

// Run executes the serve command
func (c *ServeCmd) Run(globals *Globals) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	host, deps, err := openHost(ctx, globals, &c.SessionFlags, "serve")
	if err != nil {
		return err
	}
	defer deps.Close()
	defer closeHost(globals, host)

	logger := sessionLogger(globals, "serve", host.ID())
	w := globals.Writer()
	events, unsubscribe := host.Subscribe(64)
	defer unsubscribe()
	go func() {
		for ev := range events {
			_ = emitEvent(w, ev, globals.Quiet)
		}
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- host.Run(ctx) }()

	logger.Info("serving session", zap.String("addr", c.Addr))
	srv := httpapi.New(host, httpapi.WithLogger(logger.Named("http")))
	serveErr := srv.ListenAndServe(ctx, c.Addr)
	cancel()
	<-runErr
	if serveErr != nil {
		return outputErrorCommon(globals, "SERVE_FAILED", serveErr.Error(), "check --addr or server.addr")
	}
	return nil
}
