package server

import (
	"context"
	"log"
	"net/http"
	"time"
)

func Handler(hub *Hub, store SessionStore, controls Controls) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, controls)
	registerAPIRoutes(mux, store, controls)

	return mux
}

// Serve runs the observer API until ctx is cancelled, then drains with a
// short shutdown grace period.
func Serve(ctx context.Context, addr string, hub *Hub, store SessionStore, controls Controls) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(hub, store, controls),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("observer API at http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
