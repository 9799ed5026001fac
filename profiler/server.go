package profiler

import (
	"fmt"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof"
)

// Server serves the net/http/pprof handlers on localhost.
type Server struct {
	port uint32
}

// New creates a profiler server for the given port. Port 0 picks a free
// port.
func New(port uint32) *Server {
	return &Server{port: port}
}

// Listen opens the profiler listener.
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf("localhost:%d", s.port))
}

// Serve blocks while serving pprof requests on lis.
func (s *Server) Serve(lis net.Listener) error {
	log.Printf("pprof bound to: %s", lis.Addr())
	return http.Serve(lis, nil)
}

// Start listens and serves. It blocks until the server fails.
func (s *Server) Start() {
	lis, err := s.Listen()
	if err != nil {
		log.Panicf("Error creating pprof listener: %s", err)
	}

	err = s.Serve(lis)
	if err != nil {
		log.Panicf("Error starting pprof server: %s", err)
	}
}
