package server

import (
	"time"

	"github.com/me7398/monarch/application/http/webconn"
)

type Options struct {
	// Conn configures every accepted connection.
	// Its logger and clock default to the server's.
	Conn webconn.Options

	Timeout TimeoutOptions
}

type TimeoutOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}
