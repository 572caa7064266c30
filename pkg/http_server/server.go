package http_server

import (
	"context"
	"net"
	"net/http"

	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/config"
)

// NewServer builds the status server. Request contexts derive from ctx but
// are not cancelled with it, so in-flight requests can finish during
// shutdown.
func NewServer(ctx context.Context, cfg config.Server, handler http.Handler) *http.Server {
	base := context.WithoutCancel(ctx)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return base
		},
	}
}
