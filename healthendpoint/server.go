package healthendpoint

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StartServer serves the gathered metrics on /health at addr. The returned
// listener stops the server when closed.
func StartServer(addr string, gatherer prometheus.Gatherer) net.Listener {
	router := mux.NewRouter()
	router.Handle("/health", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).
		Methods(http.MethodGet)

	server := http.Server{
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Handler: handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
			handlers.LoggingHandler(log.Writer(), router),
		),
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Unable to setup Health endpoint (%s): %s", addr, err)
	}

	go func() {
		log.Printf("Metrics endpoint is listening on %s", lis.Addr().String())
		err := server.Serve(lis)
		if err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server closing: %s", err)
		}
	}()
	return lis
}
