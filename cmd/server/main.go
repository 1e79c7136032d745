package main

import (
	"github.com/hiveboardgame/realtime/internal/logging"
)

var log = logging.New("server")

func main() {
	cfg := LoadConfig()

	srv, err := NewServer(cfg)
	if err != nil {
		log.Fatal("failed to initialize server:", err)
	}
	defer srv.Close()

	if err := srv.Run(); err != nil {
		log.Fatal("server exited:", err)
	}
}
